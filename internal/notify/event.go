// Package notify delivers batch completion notifications. A batch produces
// exactly one Event; notifiers publish it to operators and downstream systems.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a batch notification.
type Kind string

const (
	KindSuccess   Kind = "success"
	KindWarning   Kind = "warning"
	KindCancelled Kind = "cancelled"
)

// Event summarizes a finished batch. Kind is KindWarning whenever a document
// failed, even if the batch was also interrupted.
type Event struct {
	ID              uuid.UUID   `json:"id"`
	Kind            Kind        `json:"kind"`
	BatchID         uuid.UUID   `json:"batch_id"`
	Title           string      `json:"title"`
	Message         string      `json:"message"`
	Total           int         `json:"total"`
	Succeeded       int         `json:"succeeded"`
	Failed          int         `json:"failed"`
	Cancelled       int         `json:"cancelled"`
	Interrupted     bool        `json:"interrupted"`
	FailedDocuments []uuid.UUID `json:"failed_documents,omitempty"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

// Notifier publishes batch events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}
