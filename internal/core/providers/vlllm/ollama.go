package vlllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	domainimage "lazy-lister/internal/domain/image"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaRequest Ollama API请求结构
type OllamaRequest struct {
	Model    string                 `json:"model"`
	Messages []OllamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// OllamaMessage Ollama消息结构
type OllamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 纯base64，不带data URL前缀
}

// OllamaResponse Ollama API响应结构
type OllamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

type ollamaBackend struct {
	config     *Config
	baseURL    string
	httpClient *http.Client
}

func newOllamaBackend(cfg *Config, httpClient *http.Client) *ollamaBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &ollamaBackend{
		config:     cfg,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (o *ollamaBackend) generate(ctx context.Context, prompt string, img *domainimage.Payload) (string, error) {
	options := map[string]interface{}{}
	if o.config.Temperature > 0 {
		options["temperature"] = o.config.Temperature
	}
	if o.config.TopP > 0 {
		options["top_p"] = o.config.TopP
	}
	if o.config.MaxTokens > 0 {
		options["num_predict"] = o.config.MaxTokens
	}

	body, err := json.Marshal(OllamaRequest{
		Model: o.config.ModelName,
		Messages: []OllamaMessage{{
			Role:    "user",
			Content: prompt,
			Images:  []string{img.Base64},
		}},
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("[%d] %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%s", out.Error)
	}
	return out.Message.Content, nil
}
