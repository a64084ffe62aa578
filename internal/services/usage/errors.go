package usage

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrUnauthorized is returned when the API rejects the token or group ID.
	ErrUnauthorized = errors.New("unauthorized: token or group id rejected")
	// ErrTimeout is returned when the request does not complete within the timeout.
	ErrTimeout = errors.New("usage request timed out")
	// ErrNoData is returned when a successful response carries no model entries.
	ErrNoData = errors.New("No usage data available")
)

// TransportError wraps any other network, HTTP or decoding failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classify maps a failed request or body read onto ErrTimeout or a TransportError.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return &TransportError{Err: err}
}
