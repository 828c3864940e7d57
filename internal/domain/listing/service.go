package listing

import (
	"context"
	"time"
	"unicode/utf8"

	"lazy-lister/internal/domain/eventbus"
	"lazy-lister/internal/platform/errors"
	"lazy-lister/internal/platform/logging"
	"lazy-lister/internal/platform/observability"
	"lazy-lister/internal/utils"
)

// maxEventErrorLen caps the error text carried on failure events, in runes.
const maxEventErrorLen = 512

// ErrNoImage is returned when a request carries no usable image.
var ErrNoImage = errors.New(errors.KindInput, "listing.generate", "No image found")

// Service relays a listing request to the configured Generator.
type Service struct {
	generator Generator
	bus       *eventbus.Bus
	metrics   *observability.Metrics
	logger    *logging.Logger
}

// Options wires the service collaborators. Bus and Metrics may be nil.
type Options struct {
	Generator Generator
	Bus       *eventbus.Bus
	Metrics   *observability.Metrics
	Logger    *logging.Logger
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		generator: opts.Generator,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Generate performs exactly one provider call. The provider text is returned
// unmodified; failures keep the kind assigned by the provider.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	const op = "listing.generate"
	if req.Image == nil || req.Image.Size() == 0 {
		return nil, ErrNoImage
	}
	if s.generator == nil {
		return nil, errors.New(errors.KindConfig, op, "Provider not configured")
	}

	prompt := BuildPrompt(req.Prompt, req.Condition, req.Platform)
	event := eventbus.ListingEventData{
		RequestID: req.RequestID,
		Provider:  s.generator.Name(),
		Model:     s.generator.Model(),
		ImageSize: req.Image.Size(),
		MIMEType:  req.Image.MIMEType,
		Condition: string(req.Condition),
		Platform:  string(req.Platform),
	}
	s.bus.Publish(eventbus.EventListingRequested, event)

	s.logger.DebugTag("Listing", "request_id=%s state=calling-provider provider=%s model=%s prompt_chars=%d",
		req.RequestID, event.Provider, event.Model, utf8.RuneCountInString(prompt))

	ctx, end := observability.StartSpan(ctx, "listing", "generate")
	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt, req.Image)
	elapsed := time.Since(start)
	end(err)
	s.metrics.ObserveProviderCall(event.Provider, event.Model, err, elapsed)

	event.Duration = elapsed
	if err != nil {
		event.ErrorKind = string(errors.KindOf(err))
		event.Error = utils.Truncate(err.Error(), maxEventErrorLen)
		s.bus.Publish(eventbus.EventListingFailed, event)
		return nil, err
	}

	event.ResultLength = utf8.RuneCountInString(text)
	s.bus.Publish(eventbus.EventListingGenerated, event)

	return &Result{
		Text:     text,
		Prompt:   prompt,
		Provider: event.Provider,
		Model:    event.Model,
		Duration: elapsed,
	}, nil
}
