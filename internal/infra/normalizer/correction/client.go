package correction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
	"github.com/mombo-site/mombo-api/internal/infra/schema"
)

const maxResponseSize = 4 << 20

var responseSchema = schema.MustCompile("correction_response", map[string]any{
	"type":     "object",
	"required": []string{"corrected_ingredients"},
	"properties": map[string]any{
		"corrected_ingredients": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
})

type request struct {
	Ingredients []string `json:"ingredients"`
}

type response struct {
	CorrectedIngredients []string `json:"corrected_ingredients"`
}

// Client calls the ingredient-name correction service.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(url string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: url, timeout: timeout, http: httpClient, logger: logger}
}

// Correct sends the raw OCR tokens and returns the corrected names.
func (c *Client) Correct(ctx context.Context, tokens []string) ([]string, error) {
	if tokens == nil {
		tokens = []string{}
	}
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(request{Ingredients: tokens})
	if err != nil {
		return nil, fmt.Errorf("%w: encode json: %v", analysis.ErrNormalizationService, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", analysis.ErrNormalizationService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Info("normalizer.request", "req_id", reqID, "tokens", len(tokens))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("normalizer.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %v", analysis.ErrNormalizationService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", analysis.ErrNormalizationService, err)
	}

	c.logger.Info("normalizer.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: non-2xx status: %d", analysis.ErrNormalizationService, resp.StatusCode)
	}
	return ParseResponse(raw)
}

// ParseResponse validates and decodes a correction response body.
func ParseResponse(raw []byte) ([]string, error) {
	if err := responseSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrNormalizationService, err)
	}
	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", analysis.ErrNormalizationService, err)
	}
	if out.CorrectedIngredients == nil {
		out.CorrectedIngredients = []string{}
	}
	return out.CorrectedIngredients, nil
}
