package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/pkg/pagination"
	"github.com/JaimeStill/einvoice/pkg/query"
	"github.com/JaimeStill/einvoice/pkg/repository"
	"github.com/JaimeStill/einvoice/pkg/storage"
)

const signatureContentType = "application/pkcs7-signature"

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "InternalID", "ExternalRef")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	opts := &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
	return repository.WithTxOptions(ctx, r.db, opts, func(tx *sql.Tx) (*pagination.PageResult[Document], error) {
		countSQL, countArgs := qb.BuildCount()
		var total int
		if err := tx.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}

		pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
		docs, err := repository.QueryMany(ctx, tx, pageSQL, pageArgs, scanDocument)
		if err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}

		result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
		return &result, nil
	})
}

func (r *repo) LoadByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, mapping)
	}

	if d.SignatureKey != nil {
		sig, err := r.storage.Get(ctx, *d.SignatureKey)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// The document is re-signed on its next attempt.
			r.logger.Warn("signature blob missing", "id", d.ID, "key", *d.SignatureKey)
			d.SignatureKey = nil
		case err != nil:
			return nil, fmt.Errorf("load signature: %w", err)
		default:
			d.Signature = sig
		}
	}

	return &d, nil
}

func (r *repo) SaveStatus(ctx context.Context, doc *Document) error {
	if doc.Signed() && doc.SignatureKey == nil {
		key := signatureKey(doc.ID)
		if err := r.storage.Put(ctx, key, doc.Signature, signatureContentType); err != nil {
			return fmt.Errorf("store signature: %w", err)
		}
		doc.SignatureKey = &key
	}

	if err := doc.Validate(); err != nil {
		return err
	}

	q := `
		UPDATE documents
		SET status = $2, signature_key = $3, external_ref = $4, last_error = $5,
			attempts = $6, submitted_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	updated, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		var current Status
		if err := tx.QueryRowContext(
			ctx,
			"SELECT status FROM documents WHERE id = $1 FOR UPDATE",
			doc.ID,
		).Scan(&current); err != nil {
			return Document{}, err
		}

		if current != doc.Status && !current.CanTransition(doc.Status) {
			return Document{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, doc.Status)
		}

		var d Document
		err := tx.QueryRowContext(
			ctx, q,
			doc.ID,
			doc.Status,
			doc.SignatureKey,
			doc.ExternalRef,
			doc.LastError,
			doc.Attempts,
			doc.SubmittedAt,
		).Scan(&d.UpdatedAt)
		return d, err
	})

	if err != nil {
		return repository.MapError(err, mapping)
	}

	doc.UpdatedAt = updated.UpdatedAt
	r.logger.Debug("document status saved", "id", doc.ID, "status", doc.Status, "attempts", doc.Attempts)
	return nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO documents(id, kind, internal_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, kind, internal_id, status, payload, signature_key, external_ref,
			last_error, attempts, submitted_at, created_at, updated_at`

	args := []any{uuid.New(), cmd.Kind, cmd.InternalID, []byte(cmd.Payload)}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, args, scanDocument)
	})
	if err != nil {
		return nil, repository.MapError(err, mapping)
	}

	r.logger.Info("document created", "id", d.ID, "internal_id", d.InternalID, "kind", d.Kind)
	return &d, nil
}

func signatureKey(id uuid.UUID) string {
	return fmt.Sprintf("signatures/%s.p7s", id)
}
