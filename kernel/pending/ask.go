package pending

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// Asker shows dialogs and collects the input delivered for them.
type Asker struct {
	Inbox    *Inbox
	Renderer ports.DialogRenderer
	NewID    func() string
	// Timeout bounds each dialog. Zero disables the bound.
	Timeout time.Duration
}

// Ask shows dialog under a fresh correlation id and returns the values
// delivered for it. The entry is closed on every path, so input arriving
// after Ask returns is rejected by the inbox.
func (a Asker) Ask(ctx context.Context, dialog *entities.Dialog) (map[string]string, entities.DialogResult, error) {
	dialog.ID = a.NewID()
	entry, err := a.Inbox.Open(dialog.ID)
	if err != nil {
		return nil, entities.DialogResult{}, err
	}
	defer a.Inbox.Discard(dialog.ID)

	dctx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	result, err := a.Renderer.Show(dctx, dialog)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, result, &errors.TimeoutError{
				Operation: "dialog",
				Target:    dialog.ID,
				Duration:  a.Timeout,
			}
		}
		return nil, result, err
	}

	values, err := entry.Resolve()
	if err != nil {
		return nil, result, err
	}
	return values, result, nil
}
