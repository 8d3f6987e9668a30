package batch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/internal/batch"
)

func newJob(n int) batch.Job {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return batch.Job{
		ID:          uuid.New(),
		DocumentIDs: ids,
		Options:     batch.DefaultOptions(),
		StartedAt:   time.Now(),
	}
}

func TestRegistryRegister(t *testing.T) {
	r := batch.NewRegistry(discardLogger())
	job := newJob(3)

	h, err := r.Register(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Job().ID != job.ID {
		t.Errorf("handle job = %s, want %s", h.Job().ID, job.ID)
	}

	st := r.Status(job.ID)
	if st.State != batch.BatchProcessing || st.Total != 3 {
		t.Errorf("status = %+v", st)
	}

	if _, err := r.Register(context.Background(), job); !errors.Is(err, batch.ErrDuplicateBatch) {
		t.Errorf("duplicate err = %v, want ErrDuplicateBatch", err)
	}
}

func TestRegistryCancel(t *testing.T) {
	r := batch.NewRegistry(discardLogger())
	job := newJob(1)
	h, err := r.Register(context.Background(), job)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if r.Cancel(uuid.New()) {
		t.Error("cancel of unknown batch returned true")
	}

	if !r.Cancel(job.ID) {
		t.Fatal("cancel of running batch returned false")
	}
	if h.Context().Err() == nil {
		t.Error("batch context not cancelled")
	}
	if !h.CancelRequested() {
		t.Error("cancel not recorded on handle")
	}
	if !r.Status(job.ID).Cancelled {
		t.Error("status does not report cancel request")
	}
	if !r.Cancel(job.ID) {
		t.Error("repeated cancel of running batch returned false")
	}
}

func TestRegistryDeregister(t *testing.T) {
	r := batch.NewRegistry(discardLogger())
	job := newJob(2)
	h, err := r.Register(context.Background(), job)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Deregister(job.ID)

	if st := r.Status(job.ID); st.State != batch.BatchUnknown {
		t.Errorf("state = %s, want unknown", st.State)
	}
	if h.Context().Err() == nil {
		t.Error("deregister did not release the batch context")
	}
	if r.Cancel(job.ID) {
		t.Error("cancel after deregister returned true")
	}
}

func TestRegistryList(t *testing.T) {
	r := batch.NewRegistry(discardLogger())

	first := newJob(1)
	second := newJob(2)
	second.StartedAt = first.StartedAt.Add(time.Second)

	for _, job := range []batch.Job{second, first} {
		if _, err := r.Register(context.Background(), job); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("list = %d, want 2", len(list))
	}
	if list[0].BatchID != first.ID || list[1].BatchID != second.ID {
		t.Error("list not ordered by start time")
	}
}

func TestRegistryClose(t *testing.T) {
	r := batch.NewRegistry(discardLogger())
	job := newJob(1)
	h, err := r.Register(context.Background(), job)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	go func() {
		<-h.Context().Done()
		r.Deregister(job.ID)
	}()

	r.Close()

	if h.Context().Err() == nil {
		t.Error("close did not cancel running batch")
	}
	if st := r.Status(job.ID); st.State != batch.BatchUnknown {
		t.Errorf("close returned before batch deregistered: state = %s", st.State)
	}
	if _, err := r.Register(context.Background(), newJob(1)); !errors.Is(err, batch.ErrRegistryClosed) {
		t.Errorf("register after close err = %v, want ErrRegistryClosed", err)
	}
}

func TestRegistryCallerContext(t *testing.T) {
	r := batch.NewRegistry(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	h, err := r.Register(ctx, newJob(1))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cancel()
	if h.Context().Err() == nil {
		t.Error("batch context not derived from caller context")
	}
}
