package coalescer

import "errors"

var (
	// ErrTimeout is delivered to every waiter of a request that exceeded its deadline.
	ErrTimeout = errors.New("request deadline exceeded")

	// ErrOperationFailed wraps the error returned by the underlying operation.
	ErrOperationFailed = errors.New("operation failed")

	// ErrMalformedKey is returned when the request key cannot be derived.
	ErrMalformedKey = errors.New("malformed request key")

	// ErrClosed is returned for requests aborted by Close.
	ErrClosed = errors.New("coalescer is closed")
)
