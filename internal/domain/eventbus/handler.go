package eventbus

import (
	"lazy-lister/internal/platform/logging"
)

// LogHandler writes listing and system events to the application log.
type LogHandler struct {
	logger *logging.Logger
}

// NewLogHandler 创建日志事件处理器
func NewLogHandler(logger *logging.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// Attach subscribes the handler to every topic it understands.
func (h *LogHandler) Attach(bus *Bus) error {
	if err := bus.SubscribeAsync(EventListingGenerated, h.handleGenerated); err != nil {
		return err
	}
	if err := bus.SubscribeAsync(EventListingFailed, h.handleFailed); err != nil {
		return err
	}
	return bus.SubscribeAsync(EventSystemError, h.handleSystemError)
}

func (h *LogHandler) handleGenerated(data ListingEventData) {
	h.logger.InfoTag("Listing", "listing generated: request_id=%s provider=%s model=%s image_size=%d chars=%d duration=%s",
		data.RequestID, data.Provider, data.Model, data.ImageSize, data.ResultLength, data.Duration)
}

func (h *LogHandler) handleFailed(data ListingEventData) {
	h.logger.WarnTag("Listing", "listing failed: request_id=%s provider=%s kind=%s error=%s",
		data.RequestID, data.Provider, data.ErrorKind, data.Error)
}

func (h *LogHandler) handleSystemError(data SystemEventData) {
	h.logger.ErrorTag("System", "%s", data.Message)
}
