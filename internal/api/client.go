// Package api implements the HTTP client for the Trainboard backend.
// It translates typed calls into REST requests, attaches the bearer token
// from the session store, and normalizes error responses. Train lookups
// additionally drive the backend's asynchronous task protocol (see trains.go).
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SessionStore is the slice of the session the client depends on. Defining
// the interface here (in the consumer package) lets tests inject a double
// without touching the filesystem-backed implementation.
type SessionStore interface {
	// Token returns the current bearer token, or "" when logged out.
	Token() string
	// SetToken installs a freshly issued token.
	SetToken(raw string) error
	// Clear drops the session.
	Clear()
}

// Config carries the client's tunables. Zero values fall back to the same
// defaults the config package documents.
type Config struct {
	// BaseURL is the backend base including the API prefix, no trailing slash.
	BaseURL string
	// HTTPTimeout bounds each individual request.
	HTTPTimeout time.Duration
	// PollInterval is the delay between task status polls.
	PollInterval time.Duration
	// PollMaxAttempts caps status polls before a lookup times out.
	PollMaxAttempts int
}

// Client is the typed HTTP client. Construct with NewClient; safe for
// concurrent use.
type Client struct {
	base            string
	http            *http.Client
	pollInterval    time.Duration
	pollMaxAttempts int
	sessions        SessionStore
	log             *slog.Logger
}

// NewClient builds a Client whose transport chain is
// logging → bearer injection → the default transport.
func NewClient(cfg Config, sessions SessionStore, log *slog.Logger) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 30
	}
	if log == nil {
		log = slog.Default()
	}

	transport := http.RoundTripper(http.DefaultTransport)
	transport = &bearerTransport{tokens: sessions, next: transport}
	transport = &loggingTransport{log: log, next: transport}

	return &Client{
		base:            cfg.BaseURL,
		http:            &http.Client{Timeout: cfg.HTTPTimeout, Transport: transport},
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
		sessions:        sessions,
		log:             log,
	}
}

// get issues a GET and returns the response, converting non-2xx statuses
// into normalized errors. The caller owns the body on success.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// send issues a request with an optional JSON body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}
