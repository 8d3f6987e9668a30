package batch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/pkg/lifecycle"
)

// BatchState is the lifecycle state of a batch as seen through the registry.
type BatchState string

const (
	BatchProcessing BatchState = "processing"
	BatchCompleted  BatchState = "completed"
	BatchUnknown    BatchState = "unknown"
)

// Status is a point-in-time view of a registered batch.
type Status struct {
	BatchID   uuid.UUID  `json:"batch_id"`
	State     BatchState `json:"state"`
	Cancelled bool       `json:"cancel_requested"`
	Total     int        `json:"total"`
	Started   int        `json:"started"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Aborted   int        `json:"cancelled"`
	StartedAt time.Time  `json:"started_at,omitzero"`
}

// Handle is the registry's record of a running batch. It owns the batch
// context and the live counters mirrored from the aggregator.
type Handle struct {
	job    Job
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	requested bool
	done      bool
	started   int
	succeeded int
	failed    int
	aborted   int
}

// Context returns the batch context, cancelled by Cancel, registry Close, or
// the caller's context.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Job returns the registered job.
func (h *Handle) Job() Job {
	return h.job
}

// CancelRequested reports whether the batch was cancelled through the registry.
func (h *Handle) CancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requested
}

// tryStart counts a task as started unless cancellation was requested.
// Holding mu here and in requestCancel guarantees no task starts after a
// successful cancel.
func (h *Handle) tryStart() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.requested || h.ctx.Err() != nil {
		return false
	}
	h.started++
	return true
}

func (h *Handle) requestCancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.requested = true
	h.cancel()
	return true
}

func (h *Handle) record(r ItemResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch r.Outcome {
	case OutcomeSucceeded, OutcomeSkipped:
		h.succeeded++
	case OutcomeFailed:
		h.failed++
	case OutcomeCancelled:
		h.aborted++
	}
}

func (h *Handle) markDone() {
	h.mu.Lock()
	h.done = true
	h.mu.Unlock()
}

func (h *Handle) status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := BatchProcessing
	if h.done {
		state = BatchCompleted
	}
	return Status{
		BatchID:   h.job.ID,
		State:     state,
		Cancelled: h.requested,
		Total:     len(h.job.DocumentIDs),
		Started:   h.started,
		Succeeded: h.succeeded,
		Failed:    h.failed,
		Aborted:   h.aborted,
		StartedAt: h.job.StartedAt,
	}
}

// Registry tracks running batches so they can be observed and cancelled.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*Handle
	closed  bool
	active  sync.WaitGroup
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		batches: make(map[uuid.UUID]*Handle),
		logger:  logger.With("system", "batch-registry"),
	}
}

// Start registers a drain hook that closes the registry. Running batches
// finish before any shutdown hook releases the store or the notifiers.
func (r *Registry) Start(lc *lifecycle.Coordinator) error {
	lc.OnDrain(r.Close)
	return nil
}

// Register adds job and returns its handle. The handle's context derives from ctx.
func (r *Registry) Register(ctx context.Context, job Job) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if _, ok := r.batches[job.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateBatch, job.ID)
	}

	bctx, cancel := context.WithCancel(ctx)
	h := &Handle{job: job, ctx: bctx, cancel: cancel}
	r.batches[job.ID] = h
	r.active.Add(1)

	r.logger.Debug("batch registered", "batch_id", job.ID, "documents", len(job.DocumentIDs))
	return h, nil
}

// Cancel requests cancellation of a running batch. It returns false when the
// batch is unknown or has already finished all of its tasks.
func (r *Registry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	h, ok := r.batches[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if !h.requestCancel() {
		return false
	}

	r.logger.Info("batch cancellation requested", "batch_id", id)
	return true
}

// Status returns the live view of a batch, or BatchUnknown.
func (r *Registry) Status(id uuid.UUID) Status {
	r.mu.Lock()
	h, ok := r.batches[id]
	r.mu.Unlock()

	if !ok {
		return Status{BatchID: id, State: BatchUnknown}
	}
	return h.status()
}

// List returns the status of every registered batch, oldest first.
func (r *Registry) List() []Status {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.batches))
	for _, h := range r.batches {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.status())
	}
	slices.SortFunc(out, func(a, b Status) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

// Deregister removes a batch and releases its context.
func (r *Registry) Deregister(id uuid.UUID) {
	r.mu.Lock()
	h, ok := r.batches[id]
	delete(r.batches, id)
	r.mu.Unlock()

	if ok {
		h.cancel()
		r.active.Done()
	}
}

// Close rejects further registrations, cancels every running batch and waits
// until each one has deregistered.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	handles := make([]*Handle, 0, len(r.batches))
	for _, h := range r.batches {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.requestCancel()
	}
	r.active.Wait()
	r.logger.Info("batch registry closed", "cancelled", len(handles))
}
