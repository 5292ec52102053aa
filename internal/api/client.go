package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/auth"
)

// Recorder receives request outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRequest(endpoint string, status int, d time.Duration)
	Throttled(endpoint string)
	RetriesExhausted(endpoint string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, int, time.Duration) {}
func (nopRecorder) Throttled(string)                          {}
func (nopRecorder) RetriesExhausted(string)                   {}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client provides access to the Kalshi REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *auth.Credentials
	logger     *slog.Logger
	recorder   Recorder
	sleep      SleepFunc

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:         slog.Default(),
		recorder:       nopRecorder{},
		sleep:          Sleep,
		maxAttempts:    10,
		initialBackoff: 5 * time.Second,
		maxBackoff:     120 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the throttle retry configuration.
// The wait starts at initial and doubles after each 429, never exceeding max.
func WithRetries(maxAttempts int, initial, max time.Duration) ClientOption {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCredentials signs every request with the given API key.
func WithCredentials(creds *auth.Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithRecorder reports request outcomes to r.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithSleeper replaces the backoff wait, for tests.
func WithSleeper(fn SleepFunc) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
