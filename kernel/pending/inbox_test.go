package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliver(t *testing.T, in *Inbox, id, name, value string) error {
	t.Helper()
	return in.Deliver(context.Background(), entities.UserInputEvent{DialogID: id, Name: name, Value: value})
}

func TestInbox_OpenDeliverResolve(t *testing.T) {
	in := NewInbox()
	e, err := in.Open("neg-1")
	require.NoError(t, err)
	assert.Equal(t, "neg-1", e.ID())
	assert.Equal(t, 1, in.Pending())

	require.NoError(t, deliver(t, in, "neg-1", "selected-permission", "2"))
	require.NoError(t, deliver(t, in, "neg-1", "selected-permission", "1"))

	values, err := e.Resolve()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"selected-permission": "1"}, values)
	assert.Equal(t, 0, in.Pending())
}

func TestInbox_ResolvesOnce(t *testing.T) {
	in := NewInbox()
	e, err := in.Open("neg-1")
	require.NoError(t, err)

	_, err = e.Resolve()
	require.NoError(t, err)

	_, err = e.Resolve()
	assert.True(t, errors.Is(err, ErrAlreadyResolved))
}

func TestInbox_RejectsLateAndUnknownInput(t *testing.T) {
	in := NewInbox()
	e, err := in.Open("neg-1")
	require.NoError(t, err)
	_, err = e.Resolve()
	require.NoError(t, err)

	err = deliver(t, in, "neg-1", "selected-permission", "1")
	assert.True(t, errors.Is(err, ErrUnknownDialog))

	err = deliver(t, in, "never-opened", "selected-permission", "1")
	assert.True(t, errors.Is(err, ErrUnknownDialog))
}

func TestInbox_RejectsDuplicateOpen(t *testing.T) {
	in := NewInbox()
	_, err := in.Open("neg-1")
	require.NoError(t, err)

	_, err = in.Open("neg-1")
	assert.True(t, errors.Is(err, ErrDuplicateDialog))

	_, err = in.Open("")
	assert.Error(t, err)
}

func TestInbox_Discard(t *testing.T) {
	in := NewInbox()
	e, err := in.Open("neg-1")
	require.NoError(t, err)

	in.Discard("neg-1")
	assert.Equal(t, 0, in.Pending())

	_, err = e.Resolve()
	assert.True(t, errors.Is(err, ErrAlreadyResolved))

	// discarding twice is harmless
	in.Discard("neg-1")
}

func TestInbox_Deliver_CancelledContext(t *testing.T) {
	in := NewInbox()
	_, err := in.Open("neg-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = in.Deliver(ctx, entities.UserInputEvent{DialogID: "neg-1", Name: "x", Value: "y"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInbox_ConcurrentNegotiationsIsolated(t *testing.T) {
	in := NewInbox()
	const n = 20

	entries := make([]*Entry, n)
	for i := range entries {
		e, err := in.Open(fmt.Sprintf("neg-%d", i))
		require.NoError(t, err)
		entries[i] = e
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, deliver(t, in, fmt.Sprintf("neg-%d", i), "selected-permission", fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	for i, e := range entries {
		values, err := e.Resolve()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), values["selected-permission"])
	}
}
