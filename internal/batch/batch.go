// Package batch signs and submits sets of documents to the regulator under
// bounded concurrency. Each document runs through its own retry state machine;
// the coordinator bounds parallelism, honors cancellation, aggregates
// per-document results, and sends one notification per batch.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/internal/documents"
	"github.com/JaimeStill/einvoice/internal/notify"
	"github.com/JaimeStill/einvoice/internal/regulator"
)

// DocumentStore loads and persists document submission state.
type DocumentStore interface {
	// LoadByID returns documents.ErrNotFound for unknown ids.
	LoadByID(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	SaveStatus(ctx context.Context, doc *documents.Document) error
}

// Signer produces a signature over canonical document bytes.
type Signer interface {
	Sign(ctx context.Context, canonical []byte, credential string) ([]byte, error)
}

// Submitter sends a signed document to the regulator. Failures that prevent a
// decision are returned as *regulator.TransportError.
type Submitter interface {
	Submit(ctx context.Context, doc *documents.Document) (regulator.Outcome, error)
}

// Notifier delivers the batch completion event.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// Job describes a registered batch.
type Job struct {
	ID          uuid.UUID   `json:"id"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
	Options     Options     `json:"options"`
	Credential  string      `json:"-"`
	StartedAt   time.Time   `json:"started_at"`
}

// Outcome is the final disposition of one document in a batch.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// ItemResult reports what happened to one document.
type ItemResult struct {
	DocumentID  uuid.UUID `json:"document_id"`
	Outcome     Outcome   `json:"outcome"`
	Success     bool      `json:"success"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	ExternalRef string    `json:"external_ref,omitempty"`
}

// ResultStatus is the final state of a batch.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultCancelled ResultStatus = "cancelled"
)

// Result summarizes a finished batch. Items holds one entry per started
// document in submission order; Succeeded includes skipped documents.
type Result struct {
	BatchID     uuid.UUID     `json:"batch_id"`
	Status      ResultStatus  `json:"status"`
	Total       int           `json:"total"`
	Started     int           `json:"started"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Cancelled   int           `json:"cancelled"`
	Items       []ItemResult  `json:"items"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}
