package batch_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/internal/documents"
)

func setupMux(h *batch.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func newTestHandler(f *fixture) *batch.Handler {
	return batch.NewHandler(f.coordinator(), fastOptions(), discardLogger())
}

func TestHandlerSubmit(t *testing.T) {
	f := newFixture()
	ids := []uuid.UUID{f.store.add(documents.StatusDraft), uuid.New()}
	mux := setupMux(newTestHandler(f))

	batchID := uuid.New()
	body, _ := json.Marshal(map[string]any{
		"batch_id":     batchID,
		"document_ids": ids,
		"credential":   "pin",
		"options":      map[string]any{"max_degree_of_parallelism": 1, "max_retry_attempts": 1},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/batches", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var res batch.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.BatchID != batchID {
		t.Errorf("batch id = %s, want %s", res.BatchID, batchID)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("counters = succeeded %d failed %d", res.Succeeded, res.Failed)
	}
	if res.Items[1].ErrorKind != batch.KindNotFound {
		t.Errorf("missing document kind = %s", res.Items[1].ErrorKind)
	}
}

func TestHandlerSubmitErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		setup func(*fixture)
		want  int
	}{
		{
			name: "malformed body",
			body: "{",
			want: http.StatusBadRequest,
		},
		{
			name: "invalid options",
			body: `{"document_ids":["` + uuid.NewString() + `"],"options":{"max_degree_of_parallelism":0}}`,
			want: http.StatusBadRequest,
		},
		{
			name: "invalid delay",
			body: `{"document_ids":["` + uuid.NewString() + `"],"options":{"retry_delay_base":"later"}}`,
			want: http.StatusBadRequest,
		},
		{
			name:  "registry closed",
			body:  `{"document_ids":["` + uuid.NewString() + `"]}`,
			setup: func(f *fixture) { f.registry.Close() },
			want:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			mux := setupMux(newTestHandler(f))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/batches", bytes.NewBufferString(tt.body)))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestHandlerStatus(t *testing.T) {
	f := newFixture()
	job := newJob(2)
	if _, err := f.registry.Register(t.Context(), job); err != nil {
		t.Fatalf("register: %v", err)
	}
	mux := setupMux(newTestHandler(f))

	t.Run("running batch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/batches/"+job.ID.String(), nil))

		var st batch.Status
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if st.State != batch.BatchProcessing || st.Total != 2 {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("unknown batch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/batches/"+uuid.NewString(), nil))

		var st batch.Status
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if st.State != batch.BatchUnknown {
			t.Errorf("state = %s, want unknown", st.State)
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/batches", nil))

		var list []batch.Status
		if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list) != 1 || list[0].BatchID != job.ID {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/batches/nope", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerCancel(t *testing.T) {
	f := newFixture()
	job := newJob(1)
	h, err := f.registry.Register(t.Context(), job)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	mux := setupMux(newTestHandler(f))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/batches/"+job.ID.String()+"/cancel", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if h.Context().Err() == nil {
		t.Error("batch context not cancelled")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/batches/"+uuid.NewString()+"/cancel", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown batch status = %d, want 404", rec.Code)
	}
}

func TestMetricsRecordBatch(t *testing.T) {
	f := newFixture()
	id := f.store.add(documents.StatusDraft)

	reg := prometheus.NewRegistry()
	c := batch.NewCoordinator(batch.Deps{
		Store:     f.store,
		Signer:    f.signer,
		Submitter: f.submitter,
		Notifier:  f.notifier,
		Registry:  f.registry,
		Metrics:   batch.NewMetrics(reg),
		Logger:    discardLogger(),
	})

	mustSubmit(t, c, []uuid.UUID{id}, fastOptions())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"einvoice_batches_total",
		"einvoice_batch_transitions_total",
		"einvoice_batch_document_outcomes_total",
		"einvoice_batch_duration_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
}
