package pending_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	brokerErrors "github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/internal/testutil"
	"github.com/reglet-dev/reglet-broker/kernel/pending"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsker(renderer *testutil.ScriptedRenderer, timeout time.Duration) pending.Asker {
	inbox := pending.NewInbox()
	renderer.Bind(inbox)
	return pending.Asker{
		Inbox:    inbox,
		Renderer: renderer,
		NewID:    func() string { return "dialog-1" },
		Timeout:  timeout,
	}
}

func TestAsker_CollectsValues(t *testing.T) {
	renderer := testutil.NewScriptedRenderer(testutil.Confirm(map[string]string{"allowance": "10"}))
	asker := newAsker(renderer, time.Second)

	dialog := &entities.Dialog{Kind: entities.DialogForm, Heading: "Grant Stash"}
	values, result, err := asker.Ask(context.Background(), dialog)
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.Equal(t, map[string]string{"allowance": "10"}, values)
	assert.Equal(t, "dialog-1", dialog.ID)
	assert.Zero(t, asker.Inbox.Pending(), "entry is closed after Ask")

	err = asker.Inbox.Deliver(context.Background(), entities.UserInputEvent{DialogID: "dialog-1", Name: "allowance", Value: "99"})
	assert.ErrorIs(t, err, pending.ErrUnknownDialog)
}

func TestAsker_Timeout(t *testing.T) {
	renderer := testutil.NewScriptedRenderer(testutil.Answer{Block: true})
	asker := newAsker(renderer, 10*time.Millisecond)

	_, _, err := asker.Ask(context.Background(), &entities.Dialog{Kind: entities.DialogAlert})
	var te *brokerErrors.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dialog-1", te.Target)
	assert.Zero(t, asker.Inbox.Pending())
}

func TestAsker_CallerCancellation(t *testing.T) {
	renderer := testutil.NewScriptedRenderer(testutil.Answer{Block: true})
	asker := newAsker(renderer, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := asker.Ask(ctx, &entities.Dialog{Kind: entities.DialogAlert})
	assert.ErrorIs(t, err, context.Canceled)
}
