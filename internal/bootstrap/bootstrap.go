package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	_ "lazy-lister/docs"
	"lazy-lister/internal/core/providers/vlllm"
	"lazy-lister/internal/domain/eventbus"
	domainimage "lazy-lister/internal/domain/image"
	domainlisting "lazy-lister/internal/domain/listing"
	platformconfig "lazy-lister/internal/platform/config"
	platformerrors "lazy-lister/internal/platform/errors"
	platformlogging "lazy-lister/internal/platform/logging"
	platformobservability "lazy-lister/internal/platform/observability"
	"lazy-lister/internal/platform/resolver"
	httptransport "lazy-lister/internal/transport/http"
	httplisting "lazy-lister/internal/transport/http/listing"
	"lazy-lister/web"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Lazy Lister API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	// configLoader is replaced in tests; nil means config.NewLoader().
	configLoader          *platformconfig.Loader
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	metrics               *platformobservability.Metrics
	observabilityShutdown platformobservability.ShutdownFunc
	dns                   *resolver.Override
	bus                   *eventbus.Bus
	provider              *vlllm.Provider
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	// Registered first so it runs after every other deferred cleanup.
	defer finishRun(state)

	if state.provider == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"provider not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("Bootstrap", "observability did not shut down cleanly: %v", err)
			}
		}()
	}

	defer func() {
		if err := state.provider.Cleanup(); err != nil {
			logger.ErrorTag("Provider", "provider cleanup failed: %v", err)
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("start http server: %w", err)
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}
	return nil
}

// finishRun drains pending async event handlers, then closes the logger.
func finishRun(state *appState) {
	state.bus.WaitAsync()
	state.logger.InfoTag("Bootstrap", "server stopped")
	_ = state.logger.Close()
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "init graph")
	for _, step := range steps {
		deps := "-"
		if len(step.DependsOn) > 0 {
			deps = strings.Join(step.DependsOn, ", ")
		}
		logger.InfoTag("Bootstrap", "%s (%s) after: %s", step.ID, step.Title, deps)
	}
	logger.InfoTag("Bootstrap", "starting services")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "resolver:configure-dns",
			Title:     "Configure DNS override",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindPlatform,
			Execute:   configureDNSStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider", "observability:setup-hooks"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "provider:init-vlllm",
			Title:     "Initialise vision model provider",
			DependsOn: []string{"resolver:configure-dns"},
			Kind:      platformerrors.KindConfig,
			Execute:   initProviderStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.configLoader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}

	result, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}

	state.config = result.Config
	state.configPath = result.Path
	if len(result.DotEnv) > 0 {
		state.configPath += " + " + strings.Join(result.DotEnv, ", ")
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	logger.InfoTag("Bootstrap", "logging ready [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled:     state.config.Observability.Enabled,
		MetricsPath: state.config.Observability.MetricsPath,
	}

	metrics, shutdown, err := platformobservability.Setup(ctx, cfg, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.metrics = metrics
	state.observabilityShutdown = shutdown
	return nil
}

// configureDNSStep installs the configured resolvers. Bad entries are logged
// and skipped; the step itself never fails startup.
func configureDNSStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"resolver:configure-dns",
			"config/logger not initialised",
		)
	}

	override := resolver.New(state.config.DNS.Servers, state.logger)
	if len(state.config.DNS.Servers) > 0 && !override.Active() {
		state.logger.WarnTag("DNS", "no usable DNS servers in %v, keeping system resolver", state.config.DNS.Servers)
	}
	override.Install(state.logger)
	state.dns = override
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	if state == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"eventbus:init",
			"logger not initialised",
		)
	}

	bus := eventbus.New()
	if err := eventbus.NewLogHandler(state.logger).Attach(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to attach log handler", err)
	}

	if metrics := state.metrics; metrics != nil {
		if err := bus.SubscribeAsync(eventbus.EventListingGenerated, func(eventbus.ListingEventData) {
			metrics.RecordListing(true, "")
		}); err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to subscribe metrics", err)
		}
		if err := bus.SubscribeAsync(eventbus.EventListingFailed, func(data eventbus.ListingEventData) {
			metrics.RecordListing(false, data.ErrorKind)
		}); err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to subscribe metrics", err)
		}
	}

	state.bus = bus
	return nil
}

func initProviderStep(ctx context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"provider:init-vlllm",
			"config/logger not initialised",
		)
	}

	dns := state.dns
	if dns == nil {
		dns = resolver.New(nil, state.logger)
	}

	providerCfg := vlllm.FromProviderConfig(state.config.Provider)
	provider, err := vlllm.NewProvider(providerCfg, state.logger, dns.HTTPClient(state.config.Provider.Timeout))
	if err != nil {
		return err
	}
	if err := provider.Initialize(ctx); err != nil {
		return err
	}

	state.provider = provider
	return nil
}

// buildHTTPHandler wires the relay routes, the web UI and the API docs.
func buildHTTPHandler(ctx context.Context, state *appState) (*gin.Engine, error) {
	config := state.config
	logger := state.logger

	staticFS, err := static.EmbedFolder(web.Static, "static")
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap, "http:embed-static", "failed to load web ui", err)
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:  config,
		Logger:  logger,
		Metrics: state.metrics,
		Static:  staticFS,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	// 初始化图像处理管道
	imagePipeline := domainimage.NewPipeline(domainimage.Options{
		Limits: config.Image,
		Logger: logger,
	})

	listings := domainlisting.NewService(domainlisting.Options{
		Generator: state.provider,
		Bus:       state.bus,
		Metrics:   state.metrics,
		Logger:    logger,
	})

	listingService, err := httplisting.NewService(httplisting.Options{
		Logger:       logger,
		Pipeline:     imagePipeline,
		Listings:     listings,
		Provider:     state.provider,
		Metrics:      state.metrics,
		MaxImageSize: config.Image.MaxFileSize,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "listing:new-service", "failed to create listing service", err)
	}
	if err := listingService.Register(ctx, httpRouter.API); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "listing:register", "failed to register listing routes", err)
	}

	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "failed to build OpenAPI document: %v", err)
			c.JSON(http.StatusInternalServerError, httptransport.ErrorResponse{
				Error:   "failed to generate openapi spec",
				Details: err.Error(),
			})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	return router, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	router, err := buildHTTPHandler(groupCtx, state)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownWait := config.Server.ShutdownWait
	if shutdownWait <= 0 {
		shutdownWait = 10 * time.Second
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on http://localhost:%d", config.Server.Port)
		logger.InfoTag("HTTP", "relay endpoint: http://localhost:%d/api/generate", config.Server.Port)
		logger.InfoTag("HTTP", "API docs: http://localhost:%d/docs", config.Server.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "http server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "http server shut down gracefully")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			state.bus.Publish(eventbus.EventSystemError, eventbus.SystemEventData{
				Level:   "error",
				Message: "http server failed",
				Data:    err.Error(),
			})
			return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "http server failed", err)
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case <-ctx.Done():
		logger.InfoTag("Bootstrap", "received %v, shutting down", context.Cause(ctx))
	case err := <-done:
		// A server exited on its own; the group context is already cancelled.
		cancel()
		if err != nil {
			logger.ErrorTag("Bootstrap", "service stopped with error: %v", err)
			return err
		}
		return nil
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("Bootstrap", "shutdown timed out, forcing exit")
		return platformerrors.New(platformerrors.KindBootstrap, "shutdown", "shutdown timed out")
	}
	return nil
}
