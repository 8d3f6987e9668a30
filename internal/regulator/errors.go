package regulator

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Submit before the client has obtained its
// token endpoint.
var ErrNotConnected = errors.New("regulator client not connected")

// TransportError reports a submission that did not reach a business decision:
// network failures, authentication failures, throttling, and server errors.
// Transport errors are retryable.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("regulator transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("regulator transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
