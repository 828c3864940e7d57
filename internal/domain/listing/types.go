package listing

import (
	"context"
	"time"

	"lazy-lister/internal/domain/image"
)

// Generator is a multimodal model that turns a prompt and one image into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, img *image.Payload) (string, error)
	// Name identifies the backend, e.g. "gemini".
	Name() string
	Model() string
}

// Request is one upload after multipart parsing and image encoding.
type Request struct {
	RequestID string
	Image     *image.Payload
	Prompt    string
	Condition Condition
	Platform  Platform
}

// Result carries the provider text exactly as returned.
type Result struct {
	Text     string
	Prompt   string
	Provider string
	Model    string
	Duration time.Duration
}
