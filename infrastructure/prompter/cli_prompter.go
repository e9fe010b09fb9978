// Package prompter renders broker dialogs on a terminal.
package prompter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// CliPrompter implements ports.DialogRenderer for CLI environments.
// Field values are read line by line and delivered to the bound sink.
type CliPrompter struct {
	in    io.Reader
	out   io.Writer
	sink  ports.InputSink
	lines chan lineResult
	start sync.Once
	mu    sync.Mutex
}

type lineResult struct {
	err  error
	text string
}

var _ ports.DialogRenderer = (*CliPrompter)(nil)

// NewCliPrompter creates a new CliPrompter.
func NewCliPrompter(in io.Reader, out io.Writer) *CliPrompter {
	return &CliPrompter{in: in, out: out, lines: make(chan lineResult)}
}

// Bind sets the sink that receives typed field values.
func (p *CliPrompter) Bind(sink ports.InputSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// IsInteractive checks if the input is a terminal.
func (p *CliPrompter) IsInteractive() bool {
	if f, ok := p.in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// Show prints the dialog, reads one line per field and a final answer.
// End of input dismisses the dialog.
func (p *CliPrompter) Show(ctx context.Context, dialog *entities.Dialog) (entities.DialogResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render(dialog)

	for _, field := range dialog.Fields {
		_, _ = fmt.Fprint(p.out, fieldPrompt(field))
		text, err := p.readLine(ctx)
		if errors.Is(err, io.EOF) {
			return entities.DialogResult{}, nil
		}
		if err != nil {
			return entities.DialogResult{}, err
		}
		if text == "" {
			text = field.Default
		}
		if p.sink != nil && text != "" {
			ev := entities.UserInputEvent{DialogID: dialog.ID, Name: field.Name, Value: text}
			if err := p.sink.Deliver(ctx, ev); err != nil {
				return entities.DialogResult{}, fmt.Errorf("failed to deliver %s: %w", field.Name, err)
			}
		}
	}

	if dialog.Kind == entities.DialogAlert {
		_, _ = fmt.Fprint(p.out, "Press Enter to close: ")
		if _, err := p.readLine(ctx); err != nil && !errors.Is(err, io.EOF) {
			return entities.DialogResult{}, err
		}
		return entities.DialogResult{}, nil
	}

	_, _ = fmt.Fprint(p.out, "Approve? [y/n]: ")
	text, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		return entities.DialogResult{}, nil
	}
	if err != nil {
		return entities.DialogResult{}, err
	}
	switch strings.ToLower(text) {
	case "y", "yes":
		return entities.DialogResult{Confirmed: true}, nil
	default:
		return entities.DialogResult{}, nil
	}
}

func (p *CliPrompter) render(d *entities.Dialog) {
	_, _ = fmt.Fprintf(p.out, "\n== %s ==\n", d.Heading)
	for _, para := range d.Paragraphs {
		_, _ = fmt.Fprintln(p.out, para)
	}
	if d.Quote != "" {
		for _, line := range strings.Split(d.Quote, "\n") {
			_, _ = fmt.Fprintf(p.out, "  > %s\n", line)
		}
	}
	for _, row := range d.Rows {
		_, _ = fmt.Fprintf(p.out, "  %s. %s\n", row.Label, row.Text)
	}
	if d.Warning != "" {
		_, _ = fmt.Fprintf(p.out, "WARNING: %s\n", d.Warning)
	}
}

func fieldPrompt(f entities.Field) string {
	label := f.Label
	if label == "" {
		label = f.Name
	}
	switch {
	case f.Default != "":
		return fmt.Sprintf("%s [%s]: ", label, f.Default)
	case f.Placeholder != "":
		return fmt.Sprintf("%s (%s): ", label, f.Placeholder)
	default:
		return label + ": "
	}
}

// readLine waits for the next input line or ctx. A single goroutine owns
// the reader so a cancelled read never races a later one.
func (p *CliPrompter) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() {
		go p.scan()
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

func (p *CliPrompter) scan() {
	defer close(p.lines)
	if p.in == nil {
		return
	}
	reader := bufio.NewReader(p.in)
	for {
		text, err := reader.ReadString('\n')
		if text != "" || err == nil {
			p.lines <- lineResult{text: strings.TrimSpace(text)}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.lines <- lineResult{err: err}
			}
			return
		}
	}
}
