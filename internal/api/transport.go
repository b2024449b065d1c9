package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// bearerTransport injects the current session token into every outbound
// request, the client-side counterpart of a server auth middleware. When no
// token is held the request goes out unauthenticated and the server is
// responsible for rejecting it.
type bearerTransport struct {
	tokens interface{ Token() string }
	next   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if tok := t.tokens.Token(); tok != "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return t.next.RoundTrip(req)
}

// loggingTransport logs one structured line per outbound request: method,
// path, HTTP status, duration, and a generated request ID that is also sent
// as X-Request-Id so client and server logs can be correlated.
type loggingTransport struct {
	log  *slog.Logger
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	reqID := uuid.NewString()

	req = req.Clone(req.Context())
	req.Header.Set("X-Request-Id", reqID)

	resp, err := t.next.RoundTrip(req)

	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", reqID,
	}
	if err != nil {
		t.log.ErrorContext(req.Context(), "request failed", append(attrs, "error", err)...)
		return nil, err
	}
	t.log.DebugContext(req.Context(), "request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}
