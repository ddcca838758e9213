package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"contract-assistant/internal/config"
	"contract-assistant/internal/utils"
	"contract-assistant/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

// NewChatModel builds the chat model used to draft contracts for the
// configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (einoModel.ChatModel, error) {
	switch cfg.Model.Provider {
	case "doubao":
		return createDoubaoModel(ctx, cfg.Doubao)
	case "openai":
		return createOpenAIModel(ctx, cfg.OpenAI)
	case "qwen":
		return createQwenModel(ctx, cfg.Qwen)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Model.Provider)
	}
}

func createDoubaoModel(ctx context.Context, cfg config.DoubaoConfig) (einoModel.ChatModel, error) {
	logger.Infof("Using Doubao model %s (api key %s)", cfg.Model, maskKey(cfg.APIKey))

	arkCfg := &ark.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	}
	if cfg.MaxTokens > 0 {
		arkCfg.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		arkCfg.Temperature = &cfg.Temperature
	}

	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Doubao model: %w", err)
	}
	return chatModel, nil
}

func createOpenAIModel(ctx context.Context, cfg config.OpenAIConfig) (einoModel.ChatModel, error) {
	logger.Infof("Using OpenAI model %s (api key %s)", cfg.Model, maskKey(cfg.APIKey))

	chatModel, err := newOpenAIChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}
	return chatModel, nil
}

func createQwenModel(ctx context.Context, cfg config.QwenConfig) (einoModel.ChatModel, error) {
	logger.Infof("Using Qwen model %s at %s (api key %s)", cfg.Model, cfg.BaseURL, maskKey(cfg.APIKey))

	httpClient := utils.NewHTTPClient(cfg.Timeout)
	httpClient.Transport = NewDebugTransport(httpClient.Transport, cfg.DebugRequest)

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qwen model: %w", err)
	}
	return chatModel, nil
}

func maskKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	if len(key) > 6 {
		return key[:6] + "..."
	}
	return "***"
}

// DebugTransport logs outgoing model requests at debug level with credentials
// redacted.
type DebugTransport struct {
	base         http.RoundTripper
	debugEnabled bool
}

func NewDebugTransport(base http.RoundTripper, debugEnabled bool) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{
		base:         base,
		debugEnabled: debugEnabled,
	}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.debugEnabled && req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil && t.debugEnabled {
		logger.Errorf("[model debug] request to %s failed: %v", req.URL.Host, err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	headers := make(map[string]interface{}, len(req.Header))
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			headers[name] = "[REDACTED]"
			continue
		}
		headers[name] = strings.Join(values, ", ")
	}

	fields := map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"headers": headers,
	}

	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			logger.Errorf("[model debug] failed to read request body: %v", err)
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		fields["body_size"] = len(bodyBytes)
		fields["body"] = string(bodyBytes)
	}

	logger.WithFields(fields).Debug("[model debug] outgoing request")
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range []string{"authorization", "x-api-key", "x-auth-token", "cookie"} {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
