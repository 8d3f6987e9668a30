package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/internal/notify"
)

// aggregator collects item results as tasks finish and mirrors the counters
// into the registry handle.
type aggregator struct {
	job    Job
	handle *Handle

	mu    sync.Mutex
	items []*ItemResult
}

func newAggregator(job Job, h *Handle) *aggregator {
	return &aggregator{
		job:    job,
		handle: h,
		items:  make([]*ItemResult, len(job.DocumentIDs)),
	}
}

// record stores the result for the document at position i.
func (a *aggregator) record(i int, r ItemResult) {
	a.mu.Lock()
	a.items[i] = &r
	a.mu.Unlock()
	a.handle.record(r)
}

// result builds the batch result from the recorded items, in submission order.
func (a *aggregator) result(status ResultStatus, completedAt time.Time) *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := &Result{
		BatchID:     a.job.ID,
		Status:      status,
		Total:       len(a.job.DocumentIDs),
		Items:       make([]ItemResult, 0, len(a.items)),
		StartedAt:   a.job.StartedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(a.job.StartedAt),
	}

	for _, item := range a.items {
		if item == nil {
			continue
		}
		res.Items = append(res.Items, *item)
		res.Started++
		switch item.Outcome {
		case OutcomeSucceeded, OutcomeSkipped:
			res.Succeeded++
		case OutcomeFailed:
			res.Failed++
		case OutcomeCancelled:
			res.Cancelled++
		}
	}
	return res
}

// buildEvent summarizes a result as a notification.
func buildEvent(r *Result) notify.Event {
	e := notify.Event{
		ID:         uuid.New(),
		BatchID:    r.BatchID,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Cancelled:  r.Cancelled,
		OccurredAt: r.CompletedAt,
	}

	for _, item := range r.Items {
		if item.Outcome == OutcomeFailed {
			e.FailedDocuments = append(e.FailedDocuments, item.DocumentID)
		}
	}

	e.Interrupted = r.Status == ResultCancelled

	switch {
	case r.Failed > 0 && e.Interrupted:
		e.Kind = notify.KindWarning
		e.Title = "Batch submission cancelled with failures"
	case r.Failed > 0:
		e.Kind = notify.KindWarning
		e.Title = "Batch submission finished with failures"
	case e.Interrupted:
		e.Kind = notify.KindCancelled
		e.Title = "Batch submission cancelled"
	default:
		e.Kind = notify.KindSuccess
		e.Title = "Batch submission finished"
	}

	e.Message = fmt.Sprintf(
		"%d of %d documents submitted, %d failed, %d cancelled",
		r.Succeeded, r.Total, r.Failed, r.Cancelled,
	)
	return e
}

// sendNotification delivers exactly one event for the batch. Delivery
// failures are logged and counted, never returned.
func sendNotification(
	ctx context.Context,
	n Notifier,
	r *Result,
	timeout time.Duration,
	metrics *Metrics,
	logger *slog.Logger,
) {
	if n == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := n.Notify(ctx, buildEvent(r)); err != nil {
		metrics.IncrementNotifyFailures()
		logger.Error("batch notification failed", "batch_id", r.BatchID, "error", err)
	}
}
