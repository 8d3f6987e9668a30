package batch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const defaultNotifyTimeout = 15 * time.Second

// Coordinator runs batches: it registers each batch, launches document tasks
// under a parallelism bound, aggregates results, and notifies once.
type Coordinator struct {
	store         DocumentStore
	signer        Signer
	submitter     Submitter
	notifier      Notifier
	registry      *Registry
	metrics       *Metrics
	observer      Observer
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// Deps are the collaborators of a Coordinator. Metrics, Observer, and
// Notifier are optional.
type Deps struct {
	Store         DocumentStore
	Signer        Signer
	Submitter     Submitter
	Notifier      Notifier
	Registry      *Registry
	Metrics       *Metrics
	Observer      Observer
	NotifyTimeout time.Duration
	Logger        *slog.Logger
}

// NewCoordinator creates a Coordinator from its collaborators.
func NewCoordinator(d Deps) *Coordinator {
	timeout := d.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Coordinator{
		store:         d.Store,
		signer:        d.Signer,
		submitter:     d.Submitter,
		notifier:      d.Notifier,
		registry:      d.Registry,
		metrics:       d.Metrics,
		observer:      d.Observer,
		notifyTimeout: timeout,
		logger:        d.Logger.With("system", "batch"),
	}
}

// Registry returns the registry the coordinator registers batches with.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Submit runs a batch under a new id. See SubmitWithID.
func (c *Coordinator) Submit(ctx context.Context, ids []uuid.UUID, credential string, opts Options) (*Result, error) {
	return c.SubmitWithID(ctx, uuid.New(), ids, credential, opts)
}

// SubmitWithID signs and submits the documents in ids and blocks until every
// started task has finished. Duplicate ids are submitted once.
//
// Per-document failures are reported in the Result. An error is returned only
// for invalid options (ErrInvalidOptions) or when the batch cannot be
// registered (*FatalError). An empty id list yields an empty Result without
// registration or notification.
func (c *Coordinator) SubmitWithID(
	ctx context.Context,
	batchID uuid.UUID,
	ids []uuid.UUID,
	credential string,
	opts Options,
) (*Result, error) {
	startedAt := time.Now().UTC()
	ids = dedupe(ids)

	if len(ids) == 0 {
		return &Result{
			BatchID:     batchID,
			Status:      ResultCompleted,
			Items:       []ItemResult{},
			StartedAt:   startedAt,
			CompletedAt: startedAt,
		}, nil
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	job := Job{
		ID:          batchID,
		DocumentIDs: ids,
		Options:     opts,
		Credential:  credential,
		StartedAt:   startedAt,
	}

	h, err := c.registry.Register(ctx, job)
	if err != nil {
		return nil, &FatalError{BatchID: batchID, Err: err}
	}
	defer c.registry.Deregister(batchID)

	logger := c.logger.With("batch_id", batchID)
	logger.Info(
		"batch started",
		"documents", len(ids),
		"parallelism", opts.MaxDegreeOfParallelism,
		"max_attempts", opts.MaxRetryAttempts,
	)

	agg := newAggregator(job, h)
	c.launch(h, job, agg, logger)
	h.markDone()

	status := ResultCompleted
	if h.CancelRequested() || ctx.Err() != nil {
		status = ResultCancelled
	}

	result := agg.result(status, time.Now().UTC())
	c.metrics.ObserveBatch(result.Status, result.Duration)

	logger.Info(
		"batch finished",
		"status", result.Status,
		"started", result.Started,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"cancelled", result.Cancelled,
		"duration", result.Duration,
	)

	sendNotification(ctx, c.notifier, result, c.notifyTimeout, c.metrics, logger)
	return result, nil
}

// launch starts one task per document while permits are available and waits
// for all started tasks. It stops launching once the batch context is done or,
// when ContinueOnError is false, once a document has failed.
func (c *Coordinator) launch(h *Handle, job Job, agg *aggregator, logger *slog.Logger) {
	ctx := h.Context()
	opts := job.Options
	m := newMachine(job, c.store, c.signer, c.submitter, c.observe(logger), logger)
	sem := semaphore.NewWeighted(int64(opts.MaxDegreeOfParallelism))

	var (
		wg      sync.WaitGroup
		stopped atomic.Bool
	)

	for i, id := range job.DocumentIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if stopped.Load() || !h.tryStart() {
			sem.Release(1)
			break
		}

		c.metrics.TaskStarted()
		wg.Go(func() {
			defer sem.Release(1)
			defer c.metrics.TaskFinished()

			res := m.run(ctx, id)
			agg.record(i, res)
			c.metrics.ObserveItem(res)

			if res.Outcome == OutcomeFailed && !opts.ContinueOnError && stopped.CompareAndSwap(false, true) {
				logger.Warn("stopping batch after failure", "document_id", id, "error", res.Error)
			}
		})
	}

	wg.Wait()
}

func (c *Coordinator) observe(logger *slog.Logger) Observer {
	return func(t Transition) {
		c.metrics.ObserveTransition(t)
		logger.Debug(
			"document transition",
			"document_id", t.DocumentID,
			"from", t.From,
			"to", t.To,
			"attempt", t.Attempt,
		)
		if c.observer != nil {
			c.observer(t)
		}
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
