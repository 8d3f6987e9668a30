package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/pkg/pagination"
)

// System defines the public contract for document store operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	// LoadByID returns the document with its signature, or ErrNotFound.
	LoadByID(ctx context.Context, id uuid.UUID) (*Document, error)
	// SaveStatus persists the submission state of doc: status, signature,
	// external reference, last error, attempts, and submitted-at.
	SaveStatus(ctx context.Context, doc *Document) error
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
}
