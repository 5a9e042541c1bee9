// Package vision implements the image analyzer collaborator against an
// OpenAI-style vision completion endpoint.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/search"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

const analysisPrompt = `Analyze this clothing item and identify the following attributes: ` +
	`color, pattern, cut, brand (if visible). Return only JSON in this format: ` +
	`{"attributes": [{"name": "color", "value": "red", "confidence": 0.95}, ...]}. No additional text.`

// Config captures the parameters for the vision client.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client calls the vision API to extract garment attributes. Without an API
// key it degrades to an empty analysis instead of failing the pipeline.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4-vision-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Analyze sends the image reference to the vision endpoint and parses the
// recognized attributes. Local file references are inlined as base64; URIs
// pass through unchanged.
func (c *Client) Analyze(ctx context.Context, imageRef string) (search.Analysis, error) {
	start := time.Now()
	if c.cfg.APIKey == "" {
		c.logger.Warn("no vision API key configured, returning empty analysis")
		return search.Analysis{Attributes: []search.Attribute{}, Elapsed: time.Since(start)}, nil
	}

	imagePart, err := imagePayload(imageRef)
	if err != nil {
		return search.Analysis{}, fmt.Errorf("prepare image payload: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": analysisPrompt},
					{"type": "image", "image": imagePart},
				},
			},
		},
		"max_tokens": 300,
	})
	if err != nil {
		return search.Analysis{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return search.Analysis{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return search.Analysis{}, fmt.Errorf("vision request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("close vision response body failed", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return search.Analysis{}, fmt.Errorf("vision endpoint returned status %d", resp.StatusCode)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return search.Analysis{}, fmt.Errorf("decode vision response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return search.Analysis{}, fmt.Errorf("vision response contained no choices")
	}

	attrs, err := parseAttributes(completion.Choices[0].Message.Content)
	if err != nil {
		return search.Analysis{}, err
	}
	return search.Analysis{Attributes: attrs, Elapsed: time.Since(start)}, nil
}

// parseAttributes decodes the model's JSON answer into attribute records.
func parseAttributes(content string) ([]search.Attribute, error) {
	var payload struct {
		Attributes []struct {
			Name       string  `json:"name"`
			Value      string  `json:"value"`
			Confidence float64 `json:"confidence"`
		} `json:"attributes"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("parse attributes: %w", err)
	}
	attrs := make([]search.Attribute, 0, len(payload.Attributes))
	for _, a := range payload.Attributes {
		attrs = append(attrs, search.Attribute{
			Name:       a.Name,
			Value:      a.Value,
			Confidence: a.Confidence,
		})
	}
	return attrs, nil
}

// imagePayload inlines local files as base64 and passes remote URIs through.
func imagePayload(imageRef string) (map[string]string, error) {
	if strings.HasPrefix(imageRef, "http://") || strings.HasPrefix(imageRef, "https://") ||
		strings.HasPrefix(imageRef, "gs://") {
		return map[string]string{"url": imageRef}, nil
	}
	path := strings.TrimPrefix(imageRef, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image file: %w", err)
	}
	return map[string]string{"base64": base64.StdEncoding.EncodeToString(data)}, nil
}
