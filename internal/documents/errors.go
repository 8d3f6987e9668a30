package documents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/einvoice/pkg/repository"
)

// Domain errors for document operations.
var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("document already exists")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var mapping = repository.Mapping{
	NotFound:  ErrNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   ErrInvalidDocument,
}

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidDocument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
