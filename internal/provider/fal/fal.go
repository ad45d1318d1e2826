// Package fal implements provider.ImageProvider against fal.ai's synchronous
// HTTP endpoint.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/provider"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// compile-time check that *Client implements provider.ImageProvider
var _ provider.ImageProvider = (*Client)(nil)

// Client calls one fal.ai model.
type Client struct {
	http     *http.Client
	endpoint string
	config   Config
	logger   *slog.Logger
}

// New creates a Client. An empty APIKey is an error: every call would be
// rejected upstream.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("fal: API key is required")
	}
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.New("fal: base URL and model are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Model, "/"),
		config:   cfg,
		logger:   logger,
	}, nil
}

// runInput is the request body fal expects.
type runInput struct {
	Prompt            string  `json:"prompt"`
	ImageSize         string  `json:"image_size"`
	Seed              int64   `json:"seed"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumImages         int     `json:"num_images"`
	SafetyTolerance   string  `json:"safety_tolerance,omitempty"`
}

// Generate runs the model once and returns the URL of the first image.
func (c *Client) Generate(ctx context.Context, req model.ImageRequest) (string, error) {
	body, err := json.Marshal(runInput{
		Prompt:            req.Prompt,
		ImageSize:         string(req.ImageSize),
		Seed:              req.Seed,
		NumInferenceSteps: req.Steps,
		GuidanceScale:     req.Guidance,
		NumImages:         1,
		SafetyTolerance:   c.config.SafetyTolerance,
	})
	if err != nil {
		return "", fmt.Errorf("fal: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("fal: building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Key "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fal: calling %s: %w", c.config.Model, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("fal: reading response: %w", err)
	}

	c.logger.Debug("fal response",
		slog.String("model", c.config.Model),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Detail: detail(payload)}
	}

	url := gjson.GetBytes(payload, "images.0.url").String()
	if url == "" {
		return "", errors.New("fal: response contains no image URL")
	}
	return url, nil
}

// StatusError is a non-2xx answer from fal.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fal: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("fal: unexpected status %d: %s", e.StatusCode, e.Detail)
}

// maxDetail bounds, in bytes, how much of a non-JSON error body ends up in an
// error message.
const maxDetail = 200

// detail pulls a short message out of an error body. fal reports errors as
// {"detail": "..."} or {"detail": [{"msg": "..."}]}. Anything else is
// trimmed to maxDetail bytes without splitting a rune.
func detail(payload []byte) string {
	d := gjson.GetBytes(payload, "detail")
	switch {
	case d.IsArray():
		return d.Get("0.msg").String()
	case d.Exists():
		return d.String()
	}
	s := strings.TrimSpace(string(payload))
	if len(s) > maxDetail {
		cut := maxDetail
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
