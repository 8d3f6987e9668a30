// Package documents implements the document store for tax documents moving
// through the sign and submit workflow. Document rows live in PostgreSQL;
// signature blobs live in blob storage and are referenced by key.
package documents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/pkg/canonical"
)

// Kind distinguishes invoices from receipts.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindReceipt Kind = "receipt"
)

// Valid reports whether k is a known document kind.
func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindReceipt
}

// Status is the submission state of a document.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusDraft:      {StatusSubmitting},
	StatusSubmitting: {StatusSubmitting, StatusSubmitted, StatusRejected, StatusFailed},
	StatusRejected:   {StatusSubmitting},
	StatusFailed:     {StatusSubmitting},
}

// CanTransition reports whether a document may move from s to next.
// Submitted is terminal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitting, StatusSubmitted, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// Document is a tax document with its submission state.
type Document struct {
	ID           uuid.UUID       `json:"id"`
	Kind         Kind            `json:"kind"`
	InternalID   string          `json:"internal_id"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Signature    []byte          `json:"-"`
	SignatureKey *string         `json:"signature_key"`
	ExternalRef  *string         `json:"external_ref"`
	LastError    *string         `json:"last_error"`
	Attempts     int             `json:"attempts"`
	SubmittedAt  *time.Time      `json:"submitted_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Signed reports whether the document carries a signature.
func (d *Document) Signed() bool {
	return len(d.Signature) > 0
}

// Canonical returns the canonical serialization of the payload that is signed.
func (d *Document) Canonical() ([]byte, error) {
	return canonical.Serialize(d.Payload)
}

// Validate checks the invariants that hold for every persisted document state.
func (d *Document) Validate() error {
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDocument, d.Status)
	}
	submitted := d.Status == StatusSubmitted
	if submitted != (d.ExternalRef != nil) {
		return fmt.Errorf("%w: external reference must be set only when submitted", ErrInvalidDocument)
	}
	if submitted && !d.Signed() && d.SignatureKey == nil {
		return fmt.Errorf("%w: submitted document has no signature", ErrInvalidDocument)
	}
	return nil
}

// MarkSubmitted records regulator acceptance.
func (d *Document) MarkSubmitted(externalRef string, at time.Time) {
	d.Status = StatusSubmitted
	d.ExternalRef = &externalRef
	d.SubmittedAt = &at
	d.LastError = nil
}

// MarkFailed records a terminal failure with the given status and error text.
func (d *Document) MarkFailed(status Status, msg string) {
	d.Status = status
	d.LastError = &msg
	d.ExternalRef = nil
}

// CreateCommand carries the data needed to register a draft document.
type CreateCommand struct {
	Kind       Kind            `json:"kind"`
	InternalID string          `json:"internal_id"`
	Payload    json.RawMessage `json:"payload"`
}

// Validate checks that the command describes a document that can later be signed.
func (c CreateCommand) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDocument, c.Kind)
	}
	if c.InternalID == "" {
		return fmt.Errorf("%w: internal_id required", ErrInvalidDocument)
	}
	if _, err := canonical.Serialize(c.Payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}
