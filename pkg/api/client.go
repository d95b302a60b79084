// Package api is the HTTP gateway to the dashboard backend. It issues one
// request per logical resource, normalizes transport failures into typed
// errors, and flattens the nested profile wire format into the internal
// model.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// DefaultTimeout bounds a single request, matching the backend's own
// gateway timeout.
const DefaultTimeout = 5 * time.Second

// DashKeyHeader carries the static API key on every request when set.
const DashKeyHeader = "X-DASH-KEY"

// maxBodyBytes caps how much of any response body is read. Dashboard
// payloads are small; anything past this is not trusted.
const maxBodyBytes = 64 * 1024

// Option configures a Client.
type Option func(*Client)

// WithDashKey sets the static API key sent on every request.
func WithDashKey(key string) Option {
	return func(c *Client) {
		c.dashKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithCardFanOut bounds the parallelism of per-card detail fetches.
func WithCardFanOut(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.cardFanOut = n
		}
	}
}

// Client talks to one dashboard backend. Construct it once at startup and
// pass it by reference; it holds no mutable state beyond the HTTP client.
type Client struct {
	baseURL    string
	dashKey    string
	http       *http.Client
	cardFanOut int
}

// NewClient creates a gateway for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: DefaultTimeout},
		cardFanOut: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetState fetches the combined dashboard state.
func (c *Client) GetState(ctx context.Context) (*model.State, error) {
	var state model.State
	found, err := c.do(ctx, http.MethodGet, "/v1/dashboard/state", nil, &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// GetLayout fetches the layout for one view.
func (c *Client) GetLayout(ctx context.Context, view string) (*model.Layout, error) {
	path := "/v1/dashboard/layout?view=" + url.QueryEscape(view)
	var layout model.Layout
	found, err := c.do(ctx, http.MethodGet, path, nil, &layout)
	if err != nil || !found {
		return nil, err
	}
	if layout.View == "" {
		layout.View = view
	}
	return &layout, nil
}

// GetHealth fetches the health snapshot.
func (c *Client) GetHealth(ctx context.Context) (*model.Health, error) {
	var health model.Health
	found, err := c.do(ctx, http.MethodGet, "/v1/dashboard/health", nil, &health)
	if err != nil || !found {
		return nil, err
	}
	return &health, nil
}

// GetTile fetches one card's detail payload.
func (c *Client) GetTile(ctx context.Context, id string) (*model.Card, error) {
	path := "/v1/dashboard/tiles/" + url.PathEscape(id)
	var card model.Card
	found, err := c.do(ctx, http.MethodGet, path, nil, &card)
	if err != nil || !found {
		return nil, err
	}
	if card.ID == "" {
		card.ID = id
	}
	return &card, nil
}

// Command is the refresh/action payload posted to the backend.
type Command struct {
	Type   string `json:"type"`
	TileID string `json:"tileId,omitempty"`
}

// PostCommand posts an action command.
func (c *Client) PostCommand(ctx context.Context, cmd Command) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/dashboard/command", cmd, nil)
	return err
}

// RefreshTile asks the backend to refresh one card, then fetches the fresh
// detail payload.
func (c *Client) RefreshTile(ctx context.Context, id string) (*model.Card, error) {
	if id == "" {
		return nil, fmt.Errorf("tile id is required to refresh")
	}
	if err := c.PostCommand(ctx, Command{Type: "refresh", TileID: id}); err != nil {
		return nil, err
	}
	return c.GetTile(ctx, id)
}

// do issues one request. Reports found=false for a 204 response. A non-2xx
// response yields *RequestError, a network failure *TransportError, and a
// body that does not decode into out *MalformedResponseError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (found bool, err error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.dashKey != "" {
		req.Header.Set(DashKeyHeader, c.dashKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	debug.LogTiming(method+" "+path, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return false, &RequestError{Status: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, &TransportError{Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &MalformedResponseError{
			Reason: fmt.Sprintf("decoding %s: %v", path, err),
			Raw:    raw,
		}
	}
	return true, nil
}
