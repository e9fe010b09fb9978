package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiationState_CanTransition(t *testing.T) {
	happy := []NegotiationState{
		StateReceived, StateValidated, StateMatched, StateAwaitingSelection,
		StateSelected, StateDelegating, StateAwaitingGrant, StateResponded,
	}
	for i := 0; i < len(happy)-1; i++ {
		assert.True(t, happy[i].CanTransition(happy[i+1]), "%s -> %s", happy[i], happy[i+1])
	}

	assert.True(t, StateMatched.CanTransition(StateNoMatchEnd))
	assert.True(t, StateReceived.CanTransition(StateFailed))
	assert.True(t, StateAwaitingSelection.CanTransition(StateDeclined))

	assert.False(t, StateSelected.CanTransition(StateAwaitingSelection))
	assert.False(t, StateDelegating.CanTransition(StateAwaitingSelection))
	assert.False(t, StateReceived.CanTransition(StateMatched))
	assert.False(t, StateResponded.CanTransition(StateReceived))
}

func TestNegotiationState_Terminal(t *testing.T) {
	for _, s := range []NegotiationState{StateNoMatchEnd, StateResponded, StateDeclined, StateFailed} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, StateAwaitingSelection.Terminal())
}
