package ports

// TemplateEngine renders dialog copy from templates.
type TemplateEngine interface {
	// Render processes the raw template bytes with the provided data.
	// Returns resolved bytes with all template placeholders replaced.
	Render(raw []byte, data map[string]interface{}) ([]byte, error)
}
