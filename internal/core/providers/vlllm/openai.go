package vlllm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	domainimage "lazy-lister/internal/domain/image"
)

type openAIBackend struct {
	client *openai.Client
	config *Config
}

func newOpenAIBackend(cfg *Config, httpClient *http.Client) *openAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpClient
	return &openAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

func (o *openAIBackend) generate(ctx context.Context, prompt string, img *domainimage.Payload) (string, error) {
	// 构建包含图片的多模态消息
	visionMessage := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: img.DataURL(),
				},
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.config.ModelName,
		Messages:    []openai.ChatCompletionMessage{visionMessage},
		Temperature: float32(o.config.Temperature),
		TopP:        float32(o.config.TopP),
		MaxTokens:   o.config.MaxTokens,
	})
	if err != nil {
		return "", describeOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func describeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return fmt.Errorf("[%d] %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return fmt.Errorf("[%d] %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err
}
