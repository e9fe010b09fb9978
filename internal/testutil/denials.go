package testutil

import (
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// Denial is one recorded OnDenial call.
type Denial struct {
	Request interface{}
	Kind    string
	Reason  string
}

// RecordingDenialHandler keeps every denial it receives.
type RecordingDenialHandler struct {
	denials []Denial
	mu      sync.Mutex
}

var _ ports.DenialHandler = (*RecordingDenialHandler)(nil)

// OnDenial implements ports.DenialHandler.
func (h *RecordingDenialHandler) OnDenial(kind string, request interface{}, reason string) {
	h.mu.Lock()
	h.denials = append(h.denials, Denial{Kind: kind, Request: request, Reason: reason})
	h.mu.Unlock()
}

// Denials returns the recorded denials in order.
func (h *RecordingDenialHandler) Denials() []Denial {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Denial, len(h.denials))
	copy(out, h.denials)
	return out
}

// Kinds returns the kind of every recorded denial.
func (h *RecordingDenialHandler) Kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.denials))
	for _, d := range h.denials {
		out = append(out, d.Kind)
	}
	return out
}
