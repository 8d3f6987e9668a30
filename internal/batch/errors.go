package batch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Coordinator and registry errors.
var (
	ErrInvalidOptions = errors.New("invalid batch options")
	ErrRegistryClosed = errors.New("batch registry closed")
	ErrDuplicateBatch = errors.New("batch already registered")
	ErrBatchNotFound  = errors.New("batch not found")
)

// ErrorKind classifies a per-document failure.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindInvalid   ErrorKind = "invalid_document"
	KindSigning   ErrorKind = "signing"
	KindTransport ErrorKind = "transport"
	KindRejected  ErrorKind = "rejected"
	KindStore     ErrorKind = "store"
	KindCancelled ErrorKind = "cancelled"
)

// FatalError reports a condition that prevented the batch from running at all.
// Per-document failures are never fatal; they are reported in ItemResult.
type FatalError struct {
	BatchID uuid.UUID
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// RejectedError carries the regulator's reasons for rejecting a document.
type RejectedError struct {
	Reasons []string
}

func (e *RejectedError) Error() string {
	if len(e.Reasons) == 0 {
		return "rejected by regulator"
	}
	return "rejected by regulator: " + strings.Join(e.Reasons, "; ")
}

// MapHTTPStatus maps batch errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateBatch):
		return http.StatusConflict
	case errors.Is(err, ErrRegistryClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
