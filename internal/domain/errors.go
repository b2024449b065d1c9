package domain

import "errors"

// ErrNotFound is returned when the backend reports 404 for a resource
// (profile, user) the client asked for by ID.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a client-side check before any
// network call is made (e.g. missing credentials, unknown station code).
var ErrValidation = errors.New("validation error")

// ErrUnauthenticated is returned when the backend rejects a request with 401,
// or when no usable session exists for an operation that needs one.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrTaskFailed is returned when an asynchronous lookup task reaches the
// "failed" terminal state. The wrapping error carries the backend-supplied
// message verbatim.
var ErrTaskFailed = errors.New("task failed")

// ErrPollTimeout is returned when a lookup task is still pending after the
// configured maximum number of status polls.
var ErrPollTimeout = errors.New("timed out waiting for train data")
