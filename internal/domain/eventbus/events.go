package eventbus

import "time"

// 事件类型定义
const (
	EventListingRequested = "listing:requested"
	EventListingGenerated = "listing:generated"
	EventListingFailed    = "listing:failed"

	EventSystemError = "system:error"
)

// ListingEventData describes one pass through the relay.
type ListingEventData struct {
	RequestID string        `json:"request_id"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	ImageSize int           `json:"image_size"`
	MIMEType  string        `json:"mime_type"`
	Condition string        `json:"condition,omitempty"`
	Platform  string        `json:"platform,omitempty"`
	Duration  time.Duration `json:"duration"`
	// ResultLength counts characters of the returned listing.
	ResultLength int `json:"result_length,omitempty"`
	// ErrorKind and Error are set on failure only.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SystemEventData struct {
	Level   string      `json:"level"` // error, warn, info
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
