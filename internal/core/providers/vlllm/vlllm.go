package vlllm

import (
	"context"
	"net/http"
	"strings"

	domainimage "lazy-lister/internal/domain/image"
	"lazy-lister/internal/platform/config"
	"lazy-lister/internal/platform/errors"
	"lazy-lister/internal/platform/logging"
	"lazy-lister/internal/utils"
)

// MissingKeyMessage is reported to clients when no credential is configured.
const MissingKeyMessage = "API Key missing"

// Config VLLLM配置结构
type Config struct {
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// FromProviderConfig maps the application provider section.
func FromProviderConfig(cfg config.ProviderConfig) *Config {
	return &Config{
		Type:        strings.ToLower(cfg.Type),
		ModelName:   cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	}
}

// backend performs one non-streaming multimodal call.
type backend interface {
	generate(ctx context.Context, prompt string, img *domainimage.Payload) (string, error)
}

// Provider VLLLM提供者，直接处理多模态API
type Provider struct {
	config     *Config
	logger     *logging.Logger
	httpClient *http.Client

	backend backend
}

// NewProvider 创建新的VLLLM提供者. httpClient may be nil.
func NewProvider(cfg *Config, logger *logging.Logger, httpClient *http.Client) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "vlllm.new", "provider config is required")
	}
	switch cfg.Type {
	case "gemini", "openai", "ollama":
	default:
		return nil, errors.New(errors.KindConfig, "vlllm.new", "unsupported provider type: "+cfg.Type)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Provider{
		config:     cfg,
		logger:     logger,
		httpClient: httpClient,
	}, nil
}

// Initialize builds the backend client. A missing credential is not an error
// here: the provider stays uninitialised and every call reports it.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.config.Type != "ollama" && p.config.APIKey == "" {
		p.logger.WarnTag("Provider", "credential missing for %s, requests will fail until it is set", p.config.Type)
		return nil
	}

	var (
		b   backend
		err error
	)
	switch p.config.Type {
	case "gemini":
		b, err = newGeminiBackend(ctx, p.config, p.httpClient)
	case "openai":
		b = newOpenAIBackend(p.config, p.httpClient)
	case "ollama":
		b = newOllamaBackend(p.config, p.httpClient)
	}
	if err != nil {
		return errors.Wrap(errors.KindConfig, "vlllm.initialize", "initialise "+p.config.Type+" client", err)
	}
	p.backend = b

	p.logger.InfoTag("Provider", "VLLLM Provider初始化成功: type=%s model_name=%s api_key=%s",
		p.config.Type, p.config.ModelName, utils.MaskSecret(p.config.APIKey))
	return nil
}

// Ready reports whether a backend client exists.
func (p *Provider) Ready() bool {
	return p.backend != nil
}

// Generate sends the prompt and image in one request and returns the model
// text as is.
func (p *Provider) Generate(ctx context.Context, prompt string, img *domainimage.Payload) (string, error) {
	op := "vlllm." + p.config.Type
	if p.backend == nil {
		return "", errors.New(errors.KindConfig, op, MissingKeyMessage)
	}
	if img == nil || img.Size() == 0 {
		return "", errors.New(errors.KindInput, op, "No image found")
	}

	p.logger.DebugTag("Provider", "invoke vision API: type=%s model_name=%s text_length=%d image_bytes=%d mime=%s",
		p.config.Type, p.config.ModelName, len(prompt), img.Size(), img.MIMEType)

	text, err := p.backend.generate(ctx, prompt, img)
	if err != nil {
		return "", errors.Wrap(errors.KindProvider, op, "generate content", err)
	}
	return text, nil
}

// Name returns the provider type.
func (p *Provider) Name() string {
	return p.config.Type
}

// Model returns the configured model identifier.
func (p *Provider) Model() string {
	return p.config.ModelName
}

// Cleanup 释放资源
func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	p.logger.InfoTag("Provider", "VLLLM Provider cleaned up")
	return nil
}
