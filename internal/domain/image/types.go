package image

// Payload is the provider-ready form of an uploaded image.
type Payload struct {
	Bytes    []byte `json:"-"`
	Base64   string `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Format   string `json:"format,omitempty"`
}

// Size reports the decoded byte length.
func (p *Payload) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Bytes)
}

// DataURL renders the payload as a data URL for OpenAI-style image parts.
func (p *Payload) DataURL() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64
}

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
