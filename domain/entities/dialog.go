package entities

// DialogKind selects how a dialog is presented and resolved.
type DialogKind string

const (
	// DialogAlert only informs; it resolves when dismissed.
	DialogAlert DialogKind = "alert"
	// DialogConfirmation asks the user to approve or reject, optionally with input fields.
	DialogConfirmation DialogKind = "confirmation"
	// DialogForm collects field values before approval.
	DialogForm DialogKind = "form"
)

// FieldKind describes the input widget a field needs.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldDateTime FieldKind = "datetime"
)

// Row is a labelled line of a dialog, e.g. one numbered candidate.
type Row struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Field is a named input the user fills in.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`
	// Decimals is the precision of number fields.
	Decimals int `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// Dialog is a host-rendered modal. ID correlates user input with the
// negotiation that opened the dialog.
type Dialog struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       DialogKind `json:"kind" yaml:"kind"`
	Heading    string     `json:"heading" yaml:"heading"`
	Paragraphs []string   `json:"paragraphs,omitempty" yaml:"paragraphs,omitempty"`
	// Quote is shown verbatim and copyable, e.g. a requester's justification.
	Quote  string  `json:"quote,omitempty" yaml:"quote,omitempty"`
	Rows   []Row   `json:"rows,omitempty" yaml:"rows,omitempty"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	// Warning is rendered prominently when set.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// DialogResult reports how the user closed a dialog. Field values travel
// separately as UserInputEvents.
type DialogResult struct {
	Confirmed bool `json:"confirmed"`
}

// UserInputEvent is one field value typed into a dialog.
type UserInputEvent struct {
	DialogID string `json:"dialogId"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}
