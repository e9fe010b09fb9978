package ports

import (
	"context"

	"github.com/reglet-dev/reglet-broker/domain/entities"
)

// DialogRenderer shows modal dialogs to the user.
type DialogRenderer interface {
	// Show renders the dialog and blocks until the user closes it or ctx ends.
	// Field values typed by the user are delivered to the renderer's InputSink
	// before Show returns.
	Show(ctx context.Context, dialog *entities.Dialog) (entities.DialogResult, error)
}

// InputSink receives user input addressed to an open dialog.
type InputSink interface {
	// Deliver routes one input event to the dialog named by event.DialogID.
	// Events for unknown or already resolved dialogs are rejected.
	Deliver(ctx context.Context, event entities.UserInputEvent) error
}
