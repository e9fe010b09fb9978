package ports

// RequestValidator checks raw JSON payloads before they are decoded.
type RequestValidator interface {
	// Decode validates raw against the schema registered as target and,
	// on success, decodes it into out and runs struct validation.
	Decode(target string, raw []byte, out any) error
}
