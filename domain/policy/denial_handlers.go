package policy

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// Ensure implementations satisfy the interface.
var _ ports.DenialHandler = (*StderrDenialHandler)(nil)
var _ ports.DenialHandler = (*NopDenialHandler)(nil)
var _ ports.DenialHandler = (*SlogDenialHandler)(nil)

// StderrDenialHandler writes denials to stderr, or to W when set.
type StderrDenialHandler struct {
	W io.Writer
}

func (h *StderrDenialHandler) OnDenial(kind string, request interface{}, reason string) {
	w := h.W
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Permission Declined [%s]: %v (Reason: %s)\n", kind, request, reason)
}

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(kind string, request interface{}, reason string) {}

// SlogDenialHandler reports denials as structured log records.
type SlogDenialHandler struct {
	Logger *slog.Logger
}

func (h *SlogDenialHandler) OnDenial(kind string, request interface{}, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("permission declined",
		slog.String("kind", kind),
		slog.Any("request", request),
		slog.String("reason", reason),
	)
}
