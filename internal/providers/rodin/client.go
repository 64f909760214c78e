// Package rodin is the authenticated HTTP client for the Hyper3D Rodin API.
// It forwards requests and hands back the raw response; interpreting the
// payload is left to callers.
package rodin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rodinstudio/internal/infra"
)

// DefaultBaseURL is the public Rodin v2 endpoint.
const DefaultBaseURL = "https://hyperhuman.deemos.com/api/v2"

// maxResponseBytes caps JSON bodies read from the service.
const maxResponseBytes = 4 << 20

// ErrMissingAPIKey indicates that no bearer key is configured.
var ErrMissingAPIKey = errors.New("rodin: api key is required")

// KeySource supplies the bearer key per request so rotated keys apply without a restart.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

type staticKey string

func (s staticKey) APIKey(context.Context) (string, error) { return string(s), nil }

// Options configures the Rodin client.
type Options struct {
	APIKey         string
	Keys           KeySource
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Rodin API.
type Client struct {
	keys       KeySource
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Response is an upstream reply as received.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the reply declares a JSON content type.
func (r *Response) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "application/json")
}

// NewClient constructs a client with sane defaults and injected dependencies.
// RequestTimeout of zero leaves deadlines to the caller's context.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	keys := opts.Keys
	if keys == nil {
		keys = staticKey(strings.TrimSpace(opts.APIKey))
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{keys: keys, baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit posts a multipart generation request to /rodin.
func (c *Client) Submit(ctx context.Context, body io.Reader, contentType string) (*Response, error) {
	return c.Post(ctx, "/rodin", contentType, body)
}

// Status posts {subscription_key} to /status.
func (c *Client) Status(ctx context.Context, subscriptionKey string) (*Response, error) {
	return c.postJSON(ctx, "/status", map[string]string{"subscription_key": subscriptionKey})
}

// Download posts {task_uuid} to /download.
func (c *Client) Download(ctx context.Context, taskUUID string) (*Response, error) {
	return c.postJSON(ctx, "/download", map[string]string{"task_uuid": taskUUID})
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rodin: encode request: %w", err)
	}
	return c.Post(ctx, path, "application/json", bytes.NewReader(body))
}

// Post sends body to path with bearer authentication and reads the full reply.
// Non-2xx replies are returned, not turned into errors.
func (c *Client) Post(ctx context.Context, path, contentType string, body io.Reader) (*Response, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("rodin: load api key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("rodin: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rodin: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("rodin: read response: %w", err)
	}
	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("rodin: call finished")
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}, nil
}

// maxRedirects matches the net/http default hop limit.
const maxRedirects = 10

// ErrRedirectNotAllowed is returned when an artifact download redirects to a
// host the caller does not accept.
var ErrRedirectNotAllowed = errors.New("rodin: redirect to disallowed host")

// Fetch opens an artifact URL for streaming. The caller closes the body.
// When allowHost is non-nil every redirect target must pass it.
func (c *Client) Fetch(ctx context.Context, rawURL string, allowHost func(host string) bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rodin: build download request: %w", err)
	}
	client := c.httpClient
	if allowHost != nil {
		checked := *c.httpClient
		checked.CheckRedirect = func(next *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("rodin: stopped after %d redirects", maxRedirects)
			}
			if !allowHost(next.URL.Hostname()) {
				return fmt.Errorf("%w: %s", ErrRedirectNotAllowed, next.URL.Hostname())
			}
			return nil
		}
		client = &checked
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rodin: download artifact: %w", err)
	}
	return resp, nil
}
