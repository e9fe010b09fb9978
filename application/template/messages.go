package template

import (
	"fmt"
	"sort"

	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// Message keys for every dialog the broker shows.
const (
	RequestHeading      = "request.heading"
	RequestIntro        = "request.intro"
	JustificationLabel  = "request.justification"
	NoMatchBody         = "no_match.body"
	InventoryHeading    = "selection.heading"
	SelectionLabel      = "selection.label"
	SelectionHint       = "selection.placeholder"
	SelectionRetry      = "selection.retry"
	AttenuatorHeading   = "attenuator.heading"
	AttenuatorIntro     = "attenuator.intro"
	UnattenuatedWarning = "attenuator.unknown_type_warning"
)

// Messages maps message keys to templates.
type Messages map[string]string

// DefaultMessages returns the built-in English copy.
func DefaultMessages() Messages {
	return Messages{
		RequestHeading:      "Permission Request",
		RequestIntro:        "The site at {{.origin}} requests access to **{{.type}}**",
		JustificationLabel:  "Their justification:",
		NoMatchBody:         "However, you have nothing of that type.",
		InventoryHeading:    "Your Inventory",
		SelectionLabel:      "Selection",
		SelectionHint:       "Enter the number of your selection",
		SelectionRetry:      "{{.input}} is not one of the numbers above. Attempt {{.attempt}} of {{.max}}.",
		AttenuatorHeading:   "Grant {{.name}}",
		AttenuatorIntro:     "Customize the permission before granting it to reduce your risk.",
		UnattenuatedWarning: "No attenuator is registered for **{{.type}}**. If you continue, the permission is granted exactly as stored, without any limits.",
	}
}

// SampleData returns values for every placeholder the default copy uses.
// Pass it to Copywriter.Check.
func SampleData() map[string]interface{} {
	return map[string]interface{}{
		"origin": "https://example.org", "type": "Asset", "input": "9",
		"attempt": 1, "max": 1, "name": "Stash",
	}
}

// Merge returns a copy of m with overrides applied.
func (m Messages) Merge(overrides map[string]string) Messages {
	out := make(Messages, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Keys returns the message keys, sorted.
func (m Messages) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copywriter renders message keys through a template engine.
type Copywriter struct {
	engine   ports.TemplateEngine
	messages Messages
}

// NewCopywriter creates a Copywriter. A nil engine gets the strict default.
func NewCopywriter(engine ports.TemplateEngine, messages Messages) *Copywriter {
	if engine == nil {
		engine = NewGoTemplateEngine()
	}
	if messages == nil {
		messages = DefaultMessages()
	}
	return &Copywriter{engine: engine, messages: messages}
}

// Text renders the message stored under key.
func (c *Copywriter) Text(key string, data map[string]interface{}) (string, error) {
	tmpl, ok := c.messages[key]
	if !ok {
		return "", fmt.Errorf("no message for key %q", key)
	}
	out, err := c.engine.Render([]byte(tmpl), data)
	if err != nil {
		return "", fmt.Errorf("message %q: %w", key, err)
	}
	return string(out), nil
}

// Check renders every message with data, reporting the first failure.
// Use it at start-up to catch broken overrides.
func (c *Copywriter) Check(data map[string]interface{}) error {
	for _, key := range c.messages.Keys() {
		if _, err := c.Text(key, data); err != nil {
			return err
		}
	}
	return nil
}
