package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"canopy/internal/claim/models"
	"canopy/internal/sentinel"
)

// Client talks to the external imagery-analysis service over HTTP. It fetches
// the before and after scene indexes concurrently; either request failing
// fails the whole call, which the analysis service treats as a fallback
// trigger.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, custom transport).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each scene request. Default is 10s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates an imagery-analysis client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sceneRequest struct {
	Boundary models.Polygon `json:"boundary"`
	Date     string         `json:"date"`
}

type sceneResponse struct {
	Index float64 `json:"index"`
	Scene string  `json:"scene_id"`
}

// Analyze fetches the before/after vegetation indexes for the boundary.
func (c *Client) Analyze(ctx context.Context, boundary models.Polygon, beforeDate, afterDate time.Time) (*Sample, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("imagery credentials not configured: %w", sentinel.ErrUnavailable)
	}

	var before, after sceneResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.sceneIndex(gctx, boundary, beforeDate, &before)
	})
	g.Go(func() error {
		return c.sceneIndex(gctx, boundary, afterDate, &after)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Sample{
		Before: before.Index,
		After:  after.Index,
		Metadata: map[string]string{
			"before_scene": before.Scene,
			"after_scene":  after.Scene,
		},
	}, nil
}

func (c *Client) sceneIndex(ctx context.Context, boundary models.Polygon, date time.Time, out *sceneResponse) error {
	body, err := json.Marshal(sceneRequest{Boundary: boundary, Date: date.UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("encode scene request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scene-index", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build scene request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("imagery service call failed: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("imagery service returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode scene response: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

var _ Provider = (*Client)(nil)
