package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultDetectionsLimit caps GET /detections when the caller does not
// supply a positive limit.
const DefaultDetectionsLimit = 25

// Client fetches snapshots from the analytics REST API. It never retries
// and never reorders what the API returns; the caller owns cadence and
// failure policy.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Stats fetches the pipeline-wide counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.getJSON(ctx, "/stats", &out); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}

// Streams fetches the full stream roster.
func (c *Client) Streams(ctx context.Context) ([]Stream, error) {
	var out []Stream
	if err := c.getJSON(ctx, "/streams", &out); err != nil {
		return nil, fmt.Errorf("streams: %w", err)
	}
	return out, nil
}

// Detections fetches up to limit recent frame results, most recent first.
func (c *Client) Detections(ctx context.Context, limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = DefaultDetectionsLimit
	}
	var out []Detection
	if err := c.getJSON(ctx, "/detections?limit="+strconv.Itoa(limit), &out); err != nil {
		return nil, fmt.Errorf("detections: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
