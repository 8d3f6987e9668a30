package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/JaimeStill/einvoice/internal/notify"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  bool
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func (p *fakeProducer) Ping(context.Context) error { return nil }

func (p *fakeProducer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() notify.Event {
	return notify.Event{
		ID:         uuid.New(),
		Kind:       notify.KindWarning,
		BatchID:    uuid.New(),
		Title:      "Batch finished with failures",
		Message:    "2 of 3 documents submitted",
		Total:      3,
		Succeeded:  2,
		Failed:     1,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotify(t *testing.T) {
	p := &fakeProducer{}
	k := notify.NewKafkaWithProducer(p, "batches", "/einvoice/batches", discardLogger())
	e := sampleEvent()

	if err := k.Notify(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.records) != 1 {
		t.Fatalf("records = %d, want 1", len(p.records))
	}
	r := p.records[0]

	if r.Topic != "batches" {
		t.Errorf("topic = %q, want batches", r.Topic)
	}
	if string(r.Key) != e.BatchID.String() {
		t.Errorf("key = %s, want batch id", r.Key)
	}

	var ce struct {
		SpecVersion string       `json:"specversion"`
		ID          string       `json:"id"`
		Type        string       `json:"type"`
		Source      string       `json:"source"`
		Subject     string       `json:"subject"`
		Data        notify.Event `json:"data"`
	}
	if err := json.Unmarshal(r.Value, &ce); err != nil {
		t.Fatalf("decode cloudevent: %v", err)
	}

	if ce.SpecVersion != "1.0" {
		t.Errorf("specversion = %q, want 1.0", ce.SpecVersion)
	}
	if ce.ID != e.ID.String() {
		t.Errorf("id = %q, want %q", ce.ID, e.ID)
	}
	if !strings.HasSuffix(ce.Type, ".warning") {
		t.Errorf("type = %q, want warning suffix", ce.Type)
	}
	if ce.Source != "/einvoice/batches" {
		t.Errorf("source = %q", ce.Source)
	}
	if ce.Data.Failed != 1 || ce.Data.BatchID != e.BatchID {
		t.Errorf("data = %+v", ce.Data)
	}
}

func TestKafkaNotifyError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	k := notify.NewKafkaWithProducer(p, "batches", "/einvoice/batches", discardLogger())

	if err := k.Notify(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestLogNotify(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("warning event not logged at WARN: %s", out)
	}
	if !strings.Contains(out, "failed=1") {
		t.Errorf("counters missing: %s", out)
	}
}

type countingNotifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingNotifier) Notify(context.Context, notify.Event) error {
	c.calls.Add(1)
	return c.err
}

func TestFanout(t *testing.T) {
	a := &countingNotifier{}
	b := &countingNotifier{err: errors.New("unreachable")}
	c := &countingNotifier{}

	err := notify.Fanout{a, b, c}.Notify(context.Background(), sampleEvent())
	if err == nil {
		t.Fatal("expected error from failing notifier")
	}

	for i, n := range []*countingNotifier{a, b, c} {
		if got := n.calls.Load(); got != 1 {
			t.Errorf("notifier %d calls = %d, want 1", i, got)
		}
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("kafka disabled by default", func(t *testing.T) {
		var cfg notify.Config
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.KafkaEnabled() {
			t.Error("kafka enabled without brokers")
		}
	})

	t.Run("brokers from env", func(t *testing.T) {
		t.Setenv("TEST_NOTIFY_BROKERS", "kafka-1:9092, kafka-2:9092")

		var cfg notify.Config
		if err := cfg.Finalize(&notify.Env{Brokers: "TEST_NOTIFY_BROKERS"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.BrokerList(); len(got) != 2 || got[1] != "kafka-2:9092" {
			t.Errorf("brokers = %v", got)
		}
	})

	t.Run("rejects broker without port", func(t *testing.T) {
		cfg := notify.Config{Brokers: "kafka"}
		if err := cfg.Finalize(nil); err == nil {
			t.Fatal("expected error")
		}
	})
}
