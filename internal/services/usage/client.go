// Package usage fetches the MiniMax Coding Plan remains payload, derives a
// usage snapshot from it and renders that snapshot as text.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/models"
)

const (
	// DefaultURL is the Coding Plan remains endpoint.
	DefaultURL = "https://www.minimaxi.com/v1/api/openplatform/coding_plan/remains"

	// DefaultTimeout bounds the single request made per status call.
	DefaultTimeout = 10 * time.Second

	// baseRespAuthFailed is the base_resp status code MiniMax uses for a bad key.
	baseRespAuthFailed = 1004

	maxBodySize = 1 << 20
)

// Client calls the remains endpoint. It never retries.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithBaseURL sets a custom endpoint URL.
func WithBaseURL(u string) ClientOption {
	return func(cl *Client) {
		cl.baseURL = u
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// NewClient creates a remains API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{},
		baseURL: DefaultURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUsage performs one GET against the remains endpoint.
//
// It returns ErrUnauthorized for a 401 (or a base_resp auth failure),
// ErrTimeout when the timeout elapses, and a *TransportError for anything else.
func (c *Client) FetchUsage(ctx context.Context, token, groupID string) (*models.RemainsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("invalid endpoint %q: %w", c.baseURL, err)}
	}
	q := reqURL.Query()
	q.Set("GroupId", groupID)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create usage request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	logger.Debug("fetching usage", "url", reqURL.Redacted(), "group_id", groupID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read usage response: %w", err))
	}

	logger.Debug("usage response", "status_code", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := string(body)
		if len(errBody) > 512 {
			errBody = errBody[:512] + "...(truncated)"
		}
		return nil, &TransportError{Err: fmt.Errorf("usage request failed (status %d): %s", resp.StatusCode, errBody)}
	}

	var payload models.RemainsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to parse usage response: %w", err)}
	}

	switch code := payload.BaseResp.StatusCode; {
	case code == baseRespAuthFailed:
		return nil, ErrUnauthorized
	case code != 0:
		return nil, &TransportError{Err: fmt.Errorf("api error %d: %s", code, payload.BaseResp.StatusMsg)}
	}

	return &payload, nil
}
