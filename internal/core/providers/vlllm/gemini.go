package vlllm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	domainimage "lazy-lister/internal/domain/image"
)

type geminiBackend struct {
	client *genai.Client
	model  string
	cfg    *genai.GenerateContentConfig
}

func newGeminiBackend(ctx context.Context, cfg *Config, httpClient *http.Client) (*geminiBackend, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, err
	}

	generation := &genai.GenerateContentConfig{}
	if cfg.Temperature > 0 {
		generation.Temperature = genai.Ptr(float32(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		generation.TopP = genai.Ptr(float32(cfg.TopP))
	}
	if cfg.MaxTokens > 0 {
		generation.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	return &geminiBackend{client: client, model: cfg.ModelName, cfg: generation}, nil
}

func (g *geminiBackend) generate(ctx context.Context, prompt string, img *domainimage.Payload) (string, error) {
	// The SDK base64-encodes inline bytes on the wire.
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(img.Bytes, img.MIMEType),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.cfg)
	if err != nil {
		return "", describeGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("empty response from model")
	}

	text := resp.Text()
	if text == "" {
		if reason := resp.Candidates[0].FinishReason; reason != "" && reason != genai.FinishReasonStop {
			return "", fmt.Errorf("candidate finished without text: %s", reason)
		}
	}
	return text, nil
}

// describeGeminiError flattens an SDK API error into its status and message.
func describeGeminiError(err error) error {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return fmt.Errorf("[%d %s] %s", apiErr.Code, apiErr.Status, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fmt.Errorf("[%d %s] %s", apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message)
	}
	return err
}
