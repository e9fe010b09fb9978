package entities

// NegotiationState is a step of the kernel's request cycle.
type NegotiationState string

const (
	StateReceived          NegotiationState = "RECEIVED"
	StateValidated         NegotiationState = "VALIDATED"
	StateMatched           NegotiationState = "MATCHED"
	StateNoMatchEnd        NegotiationState = "NO_MATCH_END"
	StateAwaitingSelection NegotiationState = "AWAITING_SELECTION"
	StateSelected          NegotiationState = "SELECTED"
	StateDelegating        NegotiationState = "DELEGATING"
	StateAwaitingGrant     NegotiationState = "AWAITING_GRANT"
	StateResponded         NegotiationState = "RESPONDED"
	StateDeclined          NegotiationState = "DECLINED"
	StateFailed            NegotiationState = "FAILED"
)

var transitions = map[NegotiationState][]NegotiationState{
	StateReceived:          {StateValidated, StateFailed},
	StateValidated:         {StateMatched},
	StateMatched:           {StateNoMatchEnd, StateAwaitingSelection},
	StateAwaitingSelection: {StateSelected, StateDeclined},
	StateSelected:          {StateDelegating},
	StateDelegating:        {StateAwaitingGrant, StateDeclined},
	StateAwaitingGrant:     {StateResponded, StateDeclined},
}

// CanTransition reports whether the machine may move from s to next.
func (s NegotiationState) CanTransition(next NegotiationState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s NegotiationState) Terminal() bool {
	return len(transitions[s]) == 0
}
