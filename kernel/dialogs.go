package kernel

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strconv"

	"github.com/reglet-dev/reglet-broker/application/template"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/kernel/pending"
)

// prompt shows dialog and collects the input delivered for it.
func (k *Kernel) prompt(ctx context.Context, dialog *entities.Dialog) (map[string]string, entities.DialogResult, error) {
	return pending.Asker{
		Inbox:    k.inbox,
		Renderer: k.config.renderer,
		NewID:    k.config.newID,
		Timeout:  k.config.dialogTimeout,
	}.Ask(ctx, dialog)
}

func (k *Kernel) copyData(n *negotiation) map[string]interface{} {
	return map[string]interface{}{
		"origin":  n.origin,
		"type":    n.request.Type.Name,
		"input":   "",
		"attempt": 1,
		"max":     k.config.selectionAttempts,
		"name":    "",
	}
}

// text renders a message, falling back to its key. Copy is checked in New.
func (k *Kernel) text(key string, data map[string]interface{}) string {
	s, err := k.config.copywriter.Text(key, data)
	if err != nil {
		k.config.logger.Warn("failed to render dialog copy", slog.String("key", key), slog.Any("error", err))
		return key
	}
	return s
}

func (k *Kernel) header(n *negotiation, data map[string]interface{}) *entities.Dialog {
	d := &entities.Dialog{
		Heading:    k.text(template.RequestHeading, data),
		Paragraphs: []string{k.text(template.RequestIntro, data)},
	}
	if n.request.Justification != "" {
		d.Paragraphs = append(d.Paragraphs, k.text(template.JustificationLabel, data))
		d.Quote = n.request.Justification
	}
	return d
}

func (k *Kernel) noMatchDialog(n *negotiation) *entities.Dialog {
	data := k.copyData(n)
	d := k.header(n, data)
	d.Kind = entities.DialogAlert
	d.Paragraphs = append(d.Paragraphs, k.text(template.NoMatchBody, data))
	return d
}

func (k *Kernel) selectionDialog(n *negotiation, attempt int, previous error) *entities.Dialog {
	data := k.copyData(n)
	data["attempt"] = attempt
	d := k.header(n, data)
	d.Kind = entities.DialogConfirmation
	d.Paragraphs = append(d.Paragraphs, k.text(template.InventoryHeading, data))

	for i, rec := range n.candidates {
		d.Rows = append(d.Rows, entities.Row{Label: strconv.Itoa(i + 1), Text: rec.ProposedName})
	}
	d.Fields = []entities.Field{{
		Name:        entities.SelectionField,
		Label:       k.text(template.SelectionLabel, data),
		Kind:        entities.FieldText,
		Placeholder: k.text(template.SelectionHint, data),
	}}

	var sel *errors.SelectionError
	if stdErrors.As(previous, &sel) {
		data["input"] = sel.Input
		d.Warning = k.text(template.SelectionRetry, data)
	}
	return d
}
