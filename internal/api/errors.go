package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dgoodall/trainboard/internal/domain"
)

// errorBody is the backend's structured error shape. FastAPI-style services
// report a human-readable "detail" field on 4xx responses.
type errorBody struct {
	Detail string `json:"detail"`
}

// statusError converts a non-2xx response into a normalized error. A
// structured detail message is surfaced verbatim; otherwise the caller gets
// a generic message carrying the status code. 401 and 404 map onto the
// domain sentinels so callers can branch with errors.Is.
func statusError(resp *http.Response) error {
	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthenticated
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		if sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, body.Detail)
		}
		return errors.New(body.Detail)
	}

	if sentinel != nil {
		return sentinel
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// transportError wraps network-level failures with a generic message.
// Context cancellation is passed through so callers can distinguish their
// own cancellation from a flaky network.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("request failed: %w", err)
}

// decodeJSON decodes a response body into v and closes it.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
