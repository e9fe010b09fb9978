package testutil

import (
	"context"
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// Answer scripts how the user handles one dialog.
type Answer struct {
	// Values are delivered as input events before Show returns.
	Values map[string]string
	// Err is returned from Show instead of a result.
	Err error
	// Block makes Show wait for ctx to end.
	Block bool
	// Confirmed is reported in the DialogResult.
	Confirmed bool
}

// Confirm answers a dialog by approving it with the given field values.
func Confirm(values map[string]string) Answer {
	return Answer{Values: values, Confirmed: true}
}

// Select answers a selection dialog with the typed text.
func Select(input string) Answer {
	return Confirm(map[string]string{"selected-permission": input})
}

// Dismiss answers a dialog by closing it.
func Dismiss() Answer {
	return Answer{}
}

// ScriptedRenderer is a ports.DialogRenderer that plays back Answers in
// order and records every dialog shown. Dialogs beyond the script are
// dismissed.
type ScriptedRenderer struct {
	sink    ports.InputSink
	answers []Answer
	shown   []entities.Dialog
	mu      sync.Mutex
}

var _ ports.DialogRenderer = (*ScriptedRenderer)(nil)

// NewScriptedRenderer creates a renderer that plays back answers.
func NewScriptedRenderer(answers ...Answer) *ScriptedRenderer {
	return &ScriptedRenderer{answers: answers}
}

// Bind sets the sink receiving scripted input.
func (r *ScriptedRenderer) Bind(sink ports.InputSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// Show implements ports.DialogRenderer.
func (r *ScriptedRenderer) Show(ctx context.Context, dialog *entities.Dialog) (entities.DialogResult, error) {
	r.mu.Lock()
	r.shown = append(r.shown, *dialog)
	answer := Dismiss()
	if len(r.answers) > 0 {
		answer = r.answers[0]
		r.answers = r.answers[1:]
	}
	sink := r.sink
	r.mu.Unlock()

	if answer.Block {
		<-ctx.Done()
		return entities.DialogResult{}, ctx.Err()
	}
	if answer.Err != nil {
		return entities.DialogResult{}, answer.Err
	}
	if sink != nil {
		for name, value := range answer.Values {
			ev := entities.UserInputEvent{DialogID: dialog.ID, Name: name, Value: value}
			if err := sink.Deliver(ctx, ev); err != nil {
				return entities.DialogResult{}, err
			}
		}
	}
	return entities.DialogResult{Confirmed: answer.Confirmed}, nil
}

// Shown returns copies of the dialogs displayed so far.
func (r *ScriptedRenderer) Shown() []entities.Dialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.Dialog, len(r.shown))
	copy(out, r.shown)
	return out
}

// Remaining returns how many scripted answers were not used.
func (r *ScriptedRenderer) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.answers)
}
