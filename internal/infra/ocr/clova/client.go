package clova

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

const (
	secretHeader    = "X-OCR-SECRET"
	protocolVersion = "v2"
	maxResponseSize = 16 << 20
)

// Config for the OCR endpoint.
type Config struct {
	URL       string
	Secret    string
	Lang      string
	ImageName string
	Timeout   time.Duration
}

// Client sends images to a CLOVA-style general OCR endpoint. It never retries.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewClient builds a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.Lang == "" {
		cfg.Lang = "ko"
	}
	if cfg.ImageName == "" {
		cfg.ImageName = "ingredient_label"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger, now: time.Now}
}

type imageSpec struct {
	Format string `json:"format"`
	Name   string `json:"name"`
}

type message struct {
	Version   string      `json:"version"`
	RequestID string      `json:"requestId"`
	Timestamp int64       `json:"timestamp"`
	Lang      string      `json:"lang"`
	Images    []imageSpec `json:"images"`
}

// Scan runs text recognition on img.
func (c *Client) Scan(ctx context.Context, img analysis.Image) (analysis.OCRResult, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body, contentType, err := c.buildBody(reqID, img)
	if err != nil {
		return analysis.OCRResult{}, fmt.Errorf("%w: build request: %v", analysis.ErrOCRService, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return analysis.OCRResult{}, fmt.Errorf("%w: build request: %v", analysis.ErrOCRService, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(secretHeader, c.cfg.Secret)

	c.logger.Info("ocr.request", "req_id", reqID, "format", img.Format, "bytes", len(img.Data))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return analysis.OCRResult{}, fmt.Errorf("%w: %v", analysis.ErrOCRService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return analysis.OCRResult{}, fmt.Errorf("%w: read response: %v", analysis.ErrOCRService, err)
	}

	c.logger.Info("ocr.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return analysis.OCRResult{}, fmt.Errorf("%w: non-2xx status: %d", analysis.ErrOCRService, resp.StatusCode)
	}
	return ParseResult(raw)
}

func (c *Client) buildBody(reqID string, img analysis.Image) (*bytes.Buffer, string, error) {
	msg, err := json.Marshal(message{
		Version:   protocolVersion,
		RequestID: reqID,
		Timestamp: c.now().UnixMilli(),
		Lang:      c.cfg.Lang,
		Images:    []imageSpec{{Format: img.Ext(), Name: c.cfg.ImageName}},
	})
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="image.%s"`, img.Ext()))
	h.Set("Content-Type", img.ContentType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("message", string(msg)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// ParseResult validates raw against the response schema and decodes it.
func ParseResult(raw []byte) (analysis.OCRResult, error) {
	if err := responseSchema.Validate(raw); err != nil {
		return analysis.OCRResult{}, fmt.Errorf("%w: %v", analysis.ErrOCRService, err)
	}
	var res analysis.OCRResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return analysis.OCRResult{}, fmt.Errorf("%w: decode: %v", analysis.ErrOCRService, err)
	}
	return res, nil
}
