package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/einvoice/internal/documents"
	"github.com/JaimeStill/einvoice/internal/regulator"
)

const tracerName = "github.com/JaimeStill/einvoice/internal/batch"

// State is a step of the per-document state machine.
type State string

const (
	StateNotStarted State = "not_started"
	StateSigning    State = "signing"
	StateSubmitting State = "submitting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Transition records one state change of a document task.
type Transition struct {
	BatchID    uuid.UUID
	DocumentID uuid.UUID
	From       State
	To         State
	Attempt    int
	At         time.Time
}

// Observer receives every state transition. It must be safe for concurrent use.
type Observer func(Transition)

// machine runs one document through load, sign, submit, and retry.
type machine struct {
	batchID    uuid.UUID
	store      DocumentStore
	signer     Signer
	submitter  Submitter
	opts       Options
	credential string
	observe    Observer
	tracer     trace.Tracer
	logger     *slog.Logger
}

// task holds the mutable state of one run.
type task struct {
	m       *machine
	id      uuid.UUID
	state   State
	attempt int
	doc     *documents.Document
	lastErr error
	kind    ErrorKind
}

func (m *machine) run(ctx context.Context, id uuid.UUID) ItemResult {
	ctx, span := m.tracer.Start(ctx, "batch.document", trace.WithAttributes(
		attribute.String("batch.id", m.batchID.String()),
		attribute.String("document.id", id.String()),
	))
	defer span.End()

	t := &task{m: m, id: id, state: StateNotStarted}
	res := t.execute(ctx)

	span.SetAttributes(
		attribute.String("document.outcome", string(res.Outcome)),
		attribute.Int("document.attempts", res.Attempts),
	)
	if res.Outcome == OutcomeFailed {
		span.SetStatus(codes.Error, res.Error)
	}
	return res
}

func (t *task) execute(ctx context.Context) ItemResult {
	if ctx.Err() != nil {
		return t.cancelled()
	}

	doc, err := t.m.store.LoadByID(ctx, t.id)
	switch {
	case errors.Is(err, documents.ErrNotFound):
		return t.fail(KindNotFound, err)
	case err != nil && ctx.Err() != nil:
		return t.cancelled()
	case err != nil:
		return t.fail(KindStore, fmt.Errorf("load: %w", err))
	}
	t.doc = doc

	if doc.Status == documents.StatusSubmitted {
		t.to(StateSucceeded)
		res := t.result(OutcomeSkipped)
		if doc.ExternalRef != nil {
			res.ExternalRef = *doc.ExternalRef
		}
		return res
	}

	for t.attempt = 1; ; t.attempt++ {
		if ctx.Err() != nil {
			return t.cancelled()
		}

		if res, done := t.attemptOnce(ctx); done {
			return res
		}

		if (t.kind == KindRejected && !t.m.opts.RetryRejected) || t.attempt >= t.m.opts.MaxRetryAttempts {
			return t.exhausted(ctx)
		}

		t.to(StateRetrying)
		if !t.wait(ctx, t.m.opts.Backoff(t.attempt+1)) {
			return t.cancelled()
		}
	}
}

// attemptOnce signs if needed and submits. It returns done=false when the
// attempt failed in a retryable way; the cause is left in lastErr and kind.
func (t *task) attemptOnce(ctx context.Context) (ItemResult, bool) {
	t.doc.Status = documents.StatusSubmitting
	t.doc.Attempts = t.attempt
	if err := t.m.store.SaveStatus(ctx, t.doc); err != nil {
		if ctx.Err() != nil {
			return t.cancelled(), true
		}
		return t.fail(KindStore, fmt.Errorf("save submitting: %w", err)), true
	}

	if !t.doc.Signed() {
		t.to(StateSigning)

		canonical, err := t.doc.Canonical()
		if err != nil {
			return t.failPersisted(ctx, KindInvalid, fmt.Errorf("canonicalize: %w", err)), true
		}

		sig, err := t.sign(ctx, canonical)
		if err != nil {
			if ctx.Err() != nil {
				return t.cancelled(), true
			}
			t.lastErr, t.kind = err, KindSigning
			return ItemResult{}, false
		}

		t.doc.Signature = sig
		t.doc.SignatureKey = nil
		if err := t.m.store.SaveStatus(ctx, t.doc); err != nil {
			if ctx.Err() != nil {
				return t.cancelled(), true
			}
			return t.fail(KindStore, fmt.Errorf("save signature: %w", err)), true
		}
	}

	if ctx.Err() != nil {
		return t.cancelled(), true
	}
	t.to(StateSubmitting)
	outcome, err := t.submit(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return t.cancelled(), true
		}
		var te *regulator.TransportError
		if errors.As(err, &te) {
			t.lastErr, t.kind = err, KindTransport
			return ItemResult{}, false
		}
		return t.failPersisted(ctx, KindInvalid, err), true
	}

	if !outcome.Accepted {
		t.lastErr, t.kind = &RejectedError{Reasons: outcome.Reasons}, KindRejected
		return ItemResult{}, false
	}

	return t.succeed(ctx, outcome), true
}

func (t *task) sign(ctx context.Context, canonical []byte) ([]byte, error) {
	ctx, span := t.m.tracer.Start(ctx, "batch.sign", trace.WithAttributes(
		attribute.Int("attempt", t.attempt),
	))
	defer span.End()

	sig, err := t.m.signer.Sign(ctx, canonical, t.m.credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign failed")
	}
	return sig, err
}

func (t *task) submit(ctx context.Context) (regulator.Outcome, error) {
	ctx, span := t.m.tracer.Start(ctx, "batch.submit", trace.WithAttributes(
		attribute.Int("attempt", t.attempt),
	))
	defer span.End()

	outcome, err := t.m.submitter.Submit(ctx, t.doc)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
	case !outcome.Accepted:
		span.SetStatus(codes.Error, "rejected")
	}
	return outcome, err
}

// succeed persists acceptance. The acceptance stands even if it cannot be
// persisted; the store failure is reported alongside the success.
func (t *task) succeed(ctx context.Context, outcome regulator.Outcome) ItemResult {
	t.doc.MarkSubmitted(outcome.ExternalRef, time.Now().UTC())
	t.to(StateSucceeded)

	res := t.result(OutcomeSucceeded)
	res.ExternalRef = outcome.ExternalRef

	if err := t.m.store.SaveStatus(context.WithoutCancel(ctx), t.doc); err != nil {
		t.m.logger.Error(
			"accepted document not persisted",
			"document_id", t.id,
			"external_ref", outcome.ExternalRef,
			"error", err,
		)
		res.Error = fmt.Sprintf("save submitted: %v", err)
		res.ErrorKind = KindStore
	}
	return res
}

// exhausted records the terminal status after the last failed attempt.
func (t *task) exhausted(ctx context.Context) ItemResult {
	status := documents.StatusFailed
	if t.kind == KindRejected {
		status = documents.StatusRejected
	}
	return t.failWithStatus(ctx, status, t.kind, t.lastErr)
}

func (t *task) failPersisted(ctx context.Context, kind ErrorKind, err error) ItemResult {
	return t.failWithStatus(ctx, documents.StatusFailed, kind, err)
}

func (t *task) failWithStatus(ctx context.Context, status documents.Status, kind ErrorKind, err error) ItemResult {
	t.doc.MarkFailed(status, err.Error())
	if saveErr := t.m.store.SaveStatus(context.WithoutCancel(ctx), t.doc); saveErr != nil {
		t.m.logger.Warn("failed status not persisted", "document_id", t.id, "error", saveErr)
	}
	return t.fail(kind, err)
}

func (t *task) fail(kind ErrorKind, err error) ItemResult {
	t.to(StateFailed)
	res := t.result(OutcomeFailed)
	res.Error = err.Error()
	res.ErrorKind = kind
	return res
}

func (t *task) cancelled() ItemResult {
	t.to(StateCancelled)
	res := t.result(OutcomeCancelled)
	res.Error = context.Canceled.Error()
	res.ErrorKind = KindCancelled
	return res
}

func (t *task) result(outcome Outcome) ItemResult {
	return ItemResult{
		DocumentID: t.id,
		Outcome:    outcome,
		Success:    outcome == OutcomeSucceeded || outcome == OutcomeSkipped,
		Attempts:   t.attempt,
	}
}

// wait blocks for d or until ctx is done, reporting whether the full delay elapsed.
func (t *task) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *task) to(next State) {
	tr := Transition{
		BatchID:    t.m.batchID,
		DocumentID: t.id,
		From:       t.state,
		To:         next,
		Attempt:    t.attempt,
		At:         time.Now(),
	}
	t.state = next
	if t.m.observe != nil {
		t.m.observe(tr)
	}
}

func newMachine(
	job Job,
	store DocumentStore,
	signer Signer,
	submitter Submitter,
	observe Observer,
	logger *slog.Logger,
) *machine {
	return &machine{
		batchID:    job.ID,
		store:      store,
		signer:     signer,
		submitter:  submitter,
		opts:       job.Options,
		credential: job.Credential,
		observe:    observe,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
	}
}
