// Package client provides the core API client with transport retries,
// server lag handling, and continuation support.
package client

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/Sternrassler/mwapi-client/pkg/logging"
	"github.com/Sternrassler/mwapi-client/pkg/pagination"
	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
	"github.com/Sternrassler/mwapi-client/pkg/throttle"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is the main API client. It is safe for concurrent use; the requests
// it executes are not.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	lag        *throttle.Tracker
	lagGate    bool
	sleep      Sleeper
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// API endpoint, e.g. "https://en.wikipedia.org/w/api.php" (REQUIRED)
	Endpoint string

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Server lag handling
	MaxLag  int           // maxlag parameter in seconds, request.DisableMaxLag to omit
	MaxWait time.Duration // Upper bound for any single wait

	// Writes
	Assert string // assert parameter added to writes, e.g. "user" or "bot"

	// Authentication
	Username      string        // HTTP basic auth
	Password      string        // HTTP basic auth
	Authenticator Authenticator // Custom request decoration, applied last
	Jar           http.CookieJar

	// Throughput
	RateLimit float64       // Requests per second, 0 for unlimited
	Timeout   time.Duration // Per-exchange HTTP timeout, 0 for none

	// Retry
	Backoff BackoffPolicy

	// LagStore shares server lag between clients of the same site. When set,
	// calls are held back while a recorded lag window is open.
	LagStore throttle.Store

	// DisableMultipart rejects multipart requests.
	DisableMultipart bool
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(endpoint, userAgent string) Config {
	return Config{
		Endpoint:  endpoint,
		UserAgent: userAgent,
		MaxLag:    5,
		MaxWait:   120 * time.Second,
		Timeout:   60 * time.Second,
		Backoff:   DefaultBackoffPolicy(120 * time.Second),
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxWait < 0 {
		return nil, fmt.Errorf("max_wait must be >= 0 (got %v)", cfg.MaxWait)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoffPolicy(cfg.MaxWait)
	}
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.ComponentClient)

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     cfg.Jar,
		},
		limiter: rate.NewLimiter(limit, 1),
		lag:     throttle.NewTracker(cfg.LagStore, cfg.Endpoint, logging.NewLogger(logging.ComponentThrottle)),
		lagGate: cfg.LagStore != nil,
		sleep:   sleepContext,
		config:  cfg,
		logger:  logger,
	}, nil
}

// site returns the request settings derived from the configuration.
func (c *Client) site() request.Site {
	return request.Site{
		Endpoint:    c.config.Endpoint,
		UserAgent:   c.config.UserAgent,
		MaxLag:      c.config.MaxLag,
		Assert:      c.config.Assert,
		Username:    c.config.Username,
		Password:    c.config.Password,
		NoMultipart: c.config.DisableMultipart,
	}
}

// NewRequest builds a form encoded request for this client's site.
func (c *Client) NewRequest(params *request.Params, write bool) (*request.Request, error) {
	return request.New(c.site(), params, write, request.ModeForm)
}

// NewMultipartRequest builds a multipart request, needed for file uploads.
func (c *Client) NewMultipartRequest(params *request.Params, write bool) (*request.Request, error) {
	return request.New(c.site(), params, write, request.ModeMultipart)
}

// Execute performs one logical API call and returns the decoded result.
//
// Failed exchanges of read requests are retried with linear backoff; the wait
// keeps growing for the whole call, across replays. Write requests are sent
// at most once per exchange. Responses that are not valid
// JSON and maxlag errors cause the same request to be sent again; any other
// API error object is returned as *APIError (or *UserBlockedError for blocked
// writes).
func (c *Client) Execute(ctx context.Context, req *request.Request) (*result.Result, error) {
	logger := logging.WithRequest(c.logger, uuid.NewString(), req.Action(), req.IsWrite())

	if err := c.waitForLag(ctx, logger); err != nil {
		return nil, err
	}

	b := newBackoff(c.config.Backoff)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		body, header, err := c.exchange(ctx, req, b, logger)
		if err != nil {
			return nil, err
		}

		res, outcome, err := c.decode(ctx, req, body, header, logger)
		if err != nil {
			return nil, err
		}
		if outcome == outcomeDone {
			return res, nil
		}
	}
}

// waitForLag holds a call back while a lag window recorded in the shared
// store is still open.
func (c *Client) waitForLag(ctx context.Context, logger zerolog.Logger) error {
	if !c.lagGate {
		return nil
	}

	wait, err := c.lag.Remaining(ctx, c.config.MaxWait)
	if err != nil {
		logger.Warn().Err(err).Msg("Lag store unavailable, not waiting")
		return nil
	}
	if wait <= 0 {
		return nil
	}

	lagGateWaitsTotal.Inc()
	logger.Info().Dur("wait", wait).Msg("Waiting for recorded server lag")
	return c.sleep(ctx, wait)
}

// Query executes a query and follows the legacy query-continue protocol,
// merging all pages into one result. Use Pages for the continue protocol.
func (c *Client) Query(ctx context.Context, req *request.Request) (*result.Result, error) {
	first, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	if first.Has(pagination.LegacyKey) && req.Action() == "query" {
		c.logger.Warn().
			Str("action", req.Action()).
			Msg("query-continue is deprecated, prefer Pages with the continue protocol")
	}

	return pagination.Aggregate(ctx, c, req, first)
}

// Pages follows the continue protocol lazily, yielding one result per page.
// Stopping the iteration stops all further requests.
func (c *Client) Pages(ctx context.Context, req *request.Request) iter.Seq2[*result.Result, error] {
	return pagination.Pages(ctx, c, req)
}

// LagState returns the last server lag recorded for this site, or nil.
func (c *Client) LagState(ctx context.Context) (*throttle.LagState, error) {
	return c.lag.State(ctx)
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleeper replaces the wait used for backoff and lag sleeps (for testing).
func (c *Client) SetSleeper(sleep Sleeper) {
	c.sleep = sleep
}
