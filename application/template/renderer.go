// Package template renders user-facing dialog copy.
package template

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/reglet-dev/reglet-broker/domain/ports"
)

type templateConfig struct {
	strict bool
}

func defaultTemplateConfig() templateConfig {
	return templateConfig{strict: true}
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict makes rendering fail on keys missing from the data. Default on.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// GoTemplateEngine implements ports.TemplateEngine with text/template.
// Parsed templates are cached by source, so repeated dialogs parse once.
type GoTemplateEngine struct {
	parsed sync.Map // map[string]*template.Template
	config templateConfig
}

// NewGoTemplateEngine creates a GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := defaultTemplateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

// Render executes raw with data. Keys are referenced directly, e.g. {{.origin}}.
func (e *GoTemplateEngine) Render(raw []byte, data map[string]interface{}) ([]byte, error) {
	tmpl, err := e.lookup(string(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *GoTemplateEngine) lookup(src string) (*template.Template, error) {
	if t, ok := e.parsed.Load(src); ok {
		return t.(*template.Template), nil
	}
	tmpl := template.New("dialog")
	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}
	tmpl, err := tmpl.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	actual, _ := e.parsed.LoadOrStore(src, tmpl)
	return actual.(*template.Template), nil
}
