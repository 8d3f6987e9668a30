package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/internal/documents"
	"github.com/JaimeStill/einvoice/internal/notify"
	"github.com/JaimeStill/einvoice/internal/regulator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory document store that enforces status transitions.
type memStore struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]documents.Document
	history map[uuid.UUID][]documents.Status
	loadErr error
	closed  bool
}

var errStoreClosed = errors.New("store closed")

func (s *memStore) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[uuid.UUID]documents.Document),
		history: make(map[uuid.UUID][]documents.Status),
	}
}

func (s *memStore) add(status documents.Status) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	d := documents.Document{
		ID:         id,
		Kind:       documents.KindInvoice,
		InternalID: "INV-" + id.String()[:8],
		Status:     status,
		Payload:    json.RawMessage(fmt.Sprintf(`{"internalID":%q,"totalAmount":100}`, id.String()[:8])),
	}
	if status == documents.StatusSubmitted {
		ref := "ETA-" + id.String()
		d.ExternalRef = &ref
		d.Signature = []byte("sig")
	}
	s.docs[id] = d
	return id
}

func (s *memStore) get(id uuid.UUID) documents.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

func (s *memStore) statuses(id uuid.UUID) []documents.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]documents.Status(nil), s.history[id]...)
}

func (s *memStore) LoadByID(_ context.Context, id uuid.UUID) (*documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errStoreClosed
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	return &d, nil
}

func (s *memStore) SaveStatus(_ context.Context, doc *documents.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed
	}
	current, ok := s.docs[doc.ID]
	if !ok {
		return documents.ErrNotFound
	}
	if current.Status != doc.Status && !current.Status.CanTransition(doc.Status) {
		return fmt.Errorf("%w: %s to %s", documents.ErrInvalidTransition, current.Status, doc.Status)
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	s.docs[doc.ID] = *doc
	s.history[doc.ID] = append(s.history[doc.ID], doc.Status)
	return nil
}

// fakeSigner signs by prefixing the canonical bytes unless fn overrides it.
type fakeSigner struct {
	calls atomic.Int32
	fn    func(ctx context.Context, canonical []byte) ([]byte, error)
}

func (s *fakeSigner) Sign(ctx context.Context, canonical []byte, _ string) ([]byte, error) {
	s.calls.Add(1)
	if s.fn != nil {
		return s.fn(ctx, canonical)
	}
	return append([]byte("sig:"), canonical...), nil
}

// fakeSubmitter accepts every document unless fn overrides it, and tracks
// the highest number of concurrent calls.
type fakeSubmitter struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	fn       func(ctx context.Context, doc *documents.Document, call int) (regulator.Outcome, error)

	mu     sync.Mutex
	perDoc map[uuid.UUID]int
}

func (s *fakeSubmitter) Submit(ctx context.Context, doc *documents.Document) (regulator.Outcome, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.calls.Add(1)

	s.mu.Lock()
	if s.perDoc == nil {
		s.perDoc = make(map[uuid.UUID]int)
	}
	s.perDoc[doc.ID]++
	call := s.perDoc[doc.ID]
	s.mu.Unlock()

	if s.fn != nil {
		return s.fn(ctx, doc, call)
	}
	return regulator.Outcome{Accepted: true, ExternalRef: "ETA-" + doc.ID.String()}, nil
}

func (s *fakeSubmitter) callsFor(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perDoc[id]
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *fakeNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

type fixture struct {
	store     *memStore
	signer    *fakeSigner
	submitter *fakeSubmitter
	notifier  *fakeNotifier
	registry  *batch.Registry
	observer  batch.Observer
}

func newFixture() *fixture {
	return &fixture{
		store:     newMemStore(),
		signer:    &fakeSigner{},
		submitter: &fakeSubmitter{},
		notifier:  &fakeNotifier{},
		registry:  batch.NewRegistry(discardLogger()),
	}
}

func (f *fixture) coordinator() *batch.Coordinator {
	return batch.NewCoordinator(batch.Deps{
		Store:     f.store,
		Signer:    f.signer,
		Submitter: f.submitter,
		Notifier:  f.notifier,
		Registry:  f.registry,
		Observer:  f.observer,
		Logger:    discardLogger(),
	})
}

func fastOptions() batch.Options {
	opts := batch.DefaultOptions()
	opts.RetryDelayBase = time.Millisecond
	return opts
}

func mustSubmit(t *testing.T, c *batch.Coordinator, ids []uuid.UUID, opts batch.Options) *batch.Result {
	t.Helper()
	res, err := c.Submit(context.Background(), ids, "pin", opts)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return res
}

func checkCounters(t *testing.T, res *batch.Result) {
	t.Helper()
	if res.Succeeded+res.Failed+res.Cancelled != res.Started {
		t.Errorf("succeeded+failed+cancelled = %d, started = %d", res.Succeeded+res.Failed+res.Cancelled, res.Started)
	}
	if res.Started > res.Total {
		t.Errorf("started = %d exceeds total %d", res.Started, res.Total)
	}
	if len(res.Items) != res.Started {
		t.Errorf("items = %d, started = %d", len(res.Items), res.Started)
	}
}
