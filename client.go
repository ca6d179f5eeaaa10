package taskboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/httpclient"
	"github.com/taskboard/taskboard.go/pkg/auth"
	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// Client is the entry point to a board server. It owns the REST client
// and derives patch-stream subscriptions from the same endpoint, so REST
// mutations and streamed updates stay on one server.
//
// A Client is safe for concurrent use. Construct one with New and reuse
// it; subscriptions opened through it are independently closable.
type Client struct {
	baseURL url.URL
	api     *httpclient.Client
	logger  logger.Logger
	codec   *boardjson.Codec
	token   auth.TokenSource

	httpClient       *http.Client
	retryer          stream.Retryer
	reconcileTimeout time.Duration
	dialTimeout      time.Duration

	// Live subscriptions, so Tasks and Notes can hand out the collection
	// bound to an open stream. Terminal subscriptions are pruned lazily.
	mu       sync.Mutex
	taskSubs map[string]*TasksSubscription
	noteSubs map[string]*NotesSubscription
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource authenticates every REST call with tokens drawn from
// src. Combine with NewRefreshTokenSource for expiring tokens.
func WithTokenSource(src auth.TokenSource) Option {
	return func(c *Client) {
		c.token = src
	}
}

// WithToken authenticates every REST call with a fixed bearer token.
func WithToken(token string) Option {
	return WithTokenSource(auth.StaticTokenSource(token))
}

// WithLogger replaces the default stdout logger.
func WithLogger(lg logger.Logger) Option {
	return func(c *Client) {
		c.logger = lg
	}
}

// WithRetryer replaces the reconnection schedule of subscriptions opened
// through this Client.
func WithRetryer(r stream.Retryer) Option {
	return func(c *Client) {
		c.retryer = r
	}
}

// WithReconcileTimeout bounds how long optimistic mutations wait for the
// stream to confirm them.
func WithReconcileTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.reconcileTimeout = d
	}
}

// WithDialTimeout bounds each WebSocket dial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// New creates a Client for the board server at endpoint, an http or
// https base URL such as "http://localhost:8887". An empty endpoint
// falls back to the TASKBOARD_ENDPOINT environment variable.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		endpoint = GetEnvOrDefault(EnvEndpoint, "")
	}
	if endpoint == "" {
		return nil, constants.ErrNoEndpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != constants.HTTPScheme && u.Scheme != constants.HTTPSecureScheme {
		return nil, fmt.Errorf("endpoint scheme must be %q or %q, got %q",
			constants.HTTPScheme, constants.HTTPSecureScheme, u.Scheme)
	}

	c := &Client{
		baseURL:     *u,
		codec:       boardjson.New(),
		retryer:     stream.NewExponentialBackoffRetryer(),
		dialTimeout: 10 * time.Second,
		taskSubs:    make(map[string]*TasksSubscription),
		noteSubs:    make(map[string]*NotesSubscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}

	apiOpts := []httpclient.Option{
		httpclient.WithLogger(c.logger),
		httpclient.WithCodec(c.codec, c.codec),
	}
	if c.token != nil {
		apiOpts = append(apiOpts, httpclient.WithTokenSource(c.token))
	}
	if c.httpClient != nil {
		apiOpts = append(apiOpts, httpclient.WithHTTPClient(c.httpClient))
	}
	c.api, err = httpclient.New(endpoint, apiOpts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// API exposes the underlying REST client for endpoints the typed surface
// does not cover.
func (c *Client) API() *httpclient.Client {
	return c.api
}

// streamConfig assembles a subscription Config for path, carrying the
// Client's codec, logger and retry schedule.
func (c *Client) streamConfig(path string, query url.Values) (*stream.Config, error) {
	u, err := stream.StreamURL(c.baseURL, path, query)
	if err != nil {
		return nil, err
	}
	config := stream.NewConfig(u)
	config.Marshaler = c.codec
	config.Unmarshaler = c.codec
	config.Logger = c.logger
	config.Retryer = c.retryer
	config.DialTimeout = c.dialTimeout
	return config, nil
}

// NewRefreshTokenSource builds a self-refreshing token source backed by
// the board server's POST /api/auth/refresh endpoint. initial may be
// empty, in which case the first use refreshes immediately.
//
// The refresh call itself is unauthenticated; the server relies on its
// own session state to authorize it.
func NewRefreshTokenSource(endpoint, initial string, opts ...httpclient.Option) (*auth.RefreshingTokenSource, error) {
	api, err := httpclient.New(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	refresh := func(ctx context.Context) (string, error) {
		var payload struct {
			Token string `json:"token"`
		}
		if err := api.Do(ctx, http.MethodPost, "/api/auth/refresh", nil, &payload); err != nil {
			return "", err
		}
		return payload.Token, nil
	}
	return auth.NewRefreshingTokenSource(initial, refresh), nil
}
