package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sethvargo/go-retry"

	"github.com/dgoodall/trainboard/internal/domain"
)

// lookupResponse covers both answers the lookup endpoint can give: a
// synchronous completed result, or a pending task handle to poll.
type lookupResponse struct {
	Status string         `json:"status"`
	TaskID string         `json:"task_id"`
	Result []domain.Train `json:"result"`
}

// taskStatusResponse is one poll of the task status endpoint.
type taskStatusResponse struct {
	Status string         `json:"status"`
	Result []domain.Train `json:"result"`
	Error  string         `json:"error"`
}

const (
	taskPending   = "pending"
	taskCompleted = "completed"
	taskFailed    = "failed"
)

// errTaskPending marks a poll that saw no terminal state yet.
var errTaskPending = errors.New("task still pending")

// FetchTrains looks up live departures for the given route. The backend may
// answer synchronously with a result list, or hand back a pending task; in
// the latter case the client polls the task status endpoint on a fixed
// interval until the task completes, fails, or the attempt budget runs out.
//
// Terminal outcomes: a completed task yields its result list; a failed task
// yields ErrTaskFailed carrying the backend's message; exhausting the poll
// budget yields ErrPollTimeout. Cancelling ctx aborts the wait between polls.
func (c *Client) FetchTrains(ctx context.Context, origins, destinations []string, forceFetch bool) ([]domain.Train, error) {
	q := url.Values{}
	for _, o := range origins {
		q.Add("origins[]", o)
	}
	for _, d := range destinations {
		q.Add("destinations[]", d)
	}
	q.Set("forceFetch", strconv.FormatBool(forceFetch))

	resp, err := c.get(ctx, "/train/train_routes/?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("api.Client.FetchTrains: %w", err)
	}

	submitted, err := decodeLookup(resp)
	if err != nil {
		return nil, fmt.Errorf("api.Client.FetchTrains: %w", err)
	}

	switch submitted.Status {
	case taskCompleted:
		return submitted.Result, nil
	case "":
		// No envelope at all: treat whatever result field came back as the
		// synchronous answer rather than polling with an empty task id.
		return submitted.Result, nil
	case taskFailed:
		// The submit endpoint itself does not report failures this way
		// today, but a backend that does should not be mistaken for pending.
		return nil, fmt.Errorf("api.Client.FetchTrains: %w", domain.ErrTaskFailed)
	}

	result, err := c.pollTask(ctx, submitted.TaskID)
	if err != nil {
		return nil, fmt.Errorf("api.Client.FetchTrains: %w", err)
	}
	return result, nil
}

// pollTask drives the pending → {completed, failed, timed-out} state
// machine: one status request per attempt, a constant delay between
// attempts, and a hard cap of pollMaxAttempts requests.
func (c *Client) pollTask(ctx context.Context, taskID string) ([]domain.Train, error) {
	var result []domain.Train

	backoff := retry.WithMaxRetries(uint64(c.pollMaxAttempts-1), retry.NewConstant(c.pollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.get(ctx, "/train/train_routes/task_status/"+url.PathEscape(taskID))
		if err != nil {
			return err // transport or HTTP error is terminal, not retried
		}

		var status taskStatusResponse
		if err := decodeJSON(resp, &status); err != nil {
			return err
		}

		switch status.Status {
		case taskCompleted:
			result = status.Result
			return nil
		case taskFailed:
			return fmt.Errorf("%w: %s", domain.ErrTaskFailed, status.Error)
		default:
			return retry.RetryableError(errTaskPending)
		}
	})

	if errors.Is(err, errTaskPending) {
		return nil, domain.ErrPollTimeout
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decodeLookup handles the lookup endpoint's two shapes: a bare JSON array
// of trains (synchronous path) or a status envelope.
func decodeLookup(resp *http.Response) (lookupResponse, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return lookupResponse{}, fmt.Errorf("read response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var trains []domain.Train
		if err := json.Unmarshal(trimmed, &trains); err != nil {
			return lookupResponse{}, fmt.Errorf("decode response: %w", err)
		}
		return lookupResponse{Status: taskCompleted, Result: trains}, nil
	}

	var body lookupResponse
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return lookupResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return body, nil
}
