package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
	"github.com/mombo-site/mombo-api/internal/infra/normalizer/correction"
	"github.com/mombo-site/mombo-api/internal/infra/normalizer/prompt"
)

const (
	maxTokens    = 2048
	defaultModel = "gpt-4o-mini"
)

// Normalizer corrects OCR tokens with a chat model instead of the
// dedicated correction service.
type Normalizer struct {
	*openai.Client
	Model   string
	Timeout time.Duration
	logger  *slog.Logger
}

// NewNormalizer builds a Normalizer. baseURL may be empty for the public API.
func NewNormalizer(apiKey, baseURL, model string, timeout time.Duration, logger *slog.Logger) *Normalizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Normalizer{Client: openai.NewClientWithConfig(cfg), Model: model, Timeout: timeout, logger: logger}
}

// Correct implements analysis.Normalizer.
func (n *Normalizer) Correct(ctx context.Context, tokens []string) ([]string, error) {
	model := n.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserPrompt(tokens)},
		},
	}
	// reasoning models reject max_tokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := n.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			n.logger.Error("normalizer.openai.api_error", "status", apiErr.HTTPStatusCode, "error", apiErr.Message)
		}
		return nil, fmt.Errorf("%w: chat completion: %v", analysis.ErrNormalizationService, err)
	}
	n.logger.Info("normalizer.openai.response",
		"model", model,
		"tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", analysis.ErrNormalizationService)
	}
	return correction.ParseResponse([]byte(resp.Choices[0].Message.Content))
}
