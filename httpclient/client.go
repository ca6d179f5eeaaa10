// Package httpclient implements the REST half of the board protocol:
// JSON verbs against the server's resource paths, bearer authentication,
// request-id correlation and the server's {"message": ...} error
// convention.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/internal/codec"
	"github.com/taskboard/taskboard.go/internal/rand"
	"github.com/taskboard/taskboard.go/pkg/auth"
	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
)

// errorBodyLimit caps how much of a failed response is read while looking
// for the server's message field.
const errorBodyLimit = 1 << 20

// defaultTimeout bounds a single REST call when the caller's context does
// not.
const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response decoded from the server's error body.
// Error returns the server-provided message verbatim when there is one,
// so it can be surfaced to the user as-is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Client calls the board server's REST API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	token       auth.TokenSource
	logger      logger.Logger
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource makes every request carry a bearer token obtained from
// src.
func WithTokenSource(src auth.TokenSource) Option {
	return func(c *Client) {
		c.token = src
	}
}

// WithLogger overrides the default stdout logger.
func WithLogger(lg logger.Logger) Option {
	return func(c *Client) {
		c.logger = lg
	}
}

// WithCodec overrides the wire codec.
func WithCodec(m codec.Marshaler, u codec.Unmarshaler) Option {
	return func(c *Client) {
		c.marshaler = m
		c.unmarshaler = u
	}
}

// New builds a Client for the given http(s) base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, constants.ErrNoEndpoint
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case constants.HTTPScheme, constants.HTTPSecureScheme:
	default:
		return nil, fmt.Errorf("base URL scheme must be %q or %q, got %q",
			constants.HTTPScheme, constants.HTTPSecureScheme, u.Scheme)
	}

	jsonCodec := boardjson.New()
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      logger.New(slog.NewTextHandler(os.Stdout, nil)),
		marshaler:   jsonCodec,
		unmarshaler: jsonCodec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do performs one JSON request against path, which must start with a
// slash and may carry a query string. body is marshaled when non-nil;
// out, when non-nil, receives the decoded 2xx response body. Non-2xx
// responses come back as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := c.marshaler.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := rand.NewRequestID(constants.RequestIDLength)
	req.Header.Set("X-Request-Id", requestID)

	if c.token != nil {
		tok, err := c.token.Token(ctx)
		if err != nil {
			return fmt.Errorf("obtain bearer token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	c.logger.Debug("api request", "method", method, "path", path, "request_id", requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeError(resp, method, path, requestID)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := c.unmarshaler.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// decodeError turns a non-2xx response into an *APIError, keeping the
// server's message when the body carries one.
func (c *Client) decodeError(resp *http.Response, method, path, requestID string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err == nil && len(data) > 0 {
		if err := c.unmarshaler.Unmarshal(data, &body); err == nil {
			apiErr.Message = body.Message
		}
	}

	c.logger.Warn("api request failed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"message", apiErr.Message,
		"request_id", requestID,
	)
	return apiErr
}

// Resource scopes a Client to one REST collection path, such as
// /api/tasks, and exposes the verbs the optimistic mutation layer needs.
type Resource struct {
	client *Client
	path   string
}

// Resource returns a Resource rooted at path.
func (c *Client) Resource(path string) *Resource {
	return &Resource{client: c, path: strings.TrimSuffix(path, "/")}
}

// Create posts body to the collection path.
func (r *Resource) Create(ctx context.Context, body any) error {
	return r.client.Do(ctx, http.MethodPost, r.path, body, nil)
}

// Update patches the entity under key with the sparse body.
func (r *Resource) Update(ctx context.Context, key string, body any) error {
	return r.client.Do(ctx, http.MethodPatch, r.path+"/"+url.PathEscape(key), body, nil)
}

// Delete removes the entity under key.
func (r *Resource) Delete(ctx context.Context, key string) error {
	return r.client.Do(ctx, http.MethodDelete, r.path+"/"+url.PathEscape(key), nil, nil)
}

// Get decodes the entity under key into out.
func (r *Resource) Get(ctx context.Context, key string, out any) error {
	return r.client.Do(ctx, http.MethodGet, r.path+"/"+url.PathEscape(key), nil, out)
}

// List decodes the whole collection into out, optionally filtered by
// query.
func (r *Resource) List(ctx context.Context, query url.Values, out any) error {
	path := r.path
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return r.client.Do(ctx, http.MethodGet, path, nil, out)
}
