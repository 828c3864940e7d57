package observability

import (
	"context"
	"strconv"
	"time"
)

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, _ := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.DebugFields("obs span start", map[string]interface{}{
		"component": component,
		"operation": operation,
	})

	return ctx, func(err error) {
		fields := map[string]interface{}{
			"component":   component,
			"operation":   operation,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
			logger.ErrorFields("obs span end", fields)
			return
		}
		logger.DebugFields("obs span end", fields)
	}
}

// RecordHTTPRequest counts one finished HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveProviderCall counts one generate-content call.
func (m *Metrics) ObserveProviderCall(provider, model string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.providerRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordListing counts a finished listing. kind is the error kind of a
// failure and may be empty on success.
func (m *Metrics) RecordListing(success bool, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	outcome := "generated"
	if !success {
		outcome = "failed"
	}
	m.listingsTotal.WithLabelValues(outcome, kind).Inc()
}

// ObserveImageSize records the size of an accepted upload.
func (m *Metrics) ObserveImageSize(size int) {
	if m == nil {
		return
	}
	m.imageBytes.Observe(float64(size))
}
