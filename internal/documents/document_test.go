package documents_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/JaimeStill/einvoice/internal/documents"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to documents.Status
		want     bool
	}{
		{documents.StatusDraft, documents.StatusSubmitting, true},
		{documents.StatusDraft, documents.StatusSubmitted, false},
		{documents.StatusSubmitting, documents.StatusSubmitting, true},
		{documents.StatusSubmitting, documents.StatusSubmitted, true},
		{documents.StatusSubmitting, documents.StatusRejected, true},
		{documents.StatusSubmitting, documents.StatusFailed, true},
		{documents.StatusSubmitting, documents.StatusDraft, false},
		{documents.StatusRejected, documents.StatusSubmitting, true},
		{documents.StatusFailed, documents.StatusSubmitting, true},
		{documents.StatusSubmitted, documents.StatusSubmitting, false},
		{documents.StatusSubmitted, documents.StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentValidate(t *testing.T) {
	ref := "ETA-123"
	now := time.Now()

	t.Run("submitted requires external ref", func(t *testing.T) {
		d := documents.Document{Status: documents.StatusSubmitted, Signature: []byte("sig")}
		if err := d.Validate(); !errors.Is(err, documents.ErrInvalidDocument) {
			t.Errorf("err = %v, want ErrInvalidDocument", err)
		}
	})

	t.Run("external ref only when submitted", func(t *testing.T) {
		d := documents.Document{Status: documents.StatusFailed, ExternalRef: &ref}
		if err := d.Validate(); !errors.Is(err, documents.ErrInvalidDocument) {
			t.Errorf("err = %v, want ErrInvalidDocument", err)
		}
	})

	t.Run("submitted requires signature", func(t *testing.T) {
		d := documents.Document{Status: documents.StatusSubmitted, ExternalRef: &ref}
		if err := d.Validate(); !errors.Is(err, documents.ErrInvalidDocument) {
			t.Errorf("err = %v, want ErrInvalidDocument", err)
		}
	})

	t.Run("marked submitted is valid", func(t *testing.T) {
		d := documents.Document{Status: documents.StatusSubmitting, Signature: []byte("sig")}
		d.MarkSubmitted(ref, now)
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if d.SubmittedAt == nil || !d.SubmittedAt.Equal(now) {
			t.Errorf("submitted_at = %v, want %v", d.SubmittedAt, now)
		}
	})

	t.Run("marked failed clears external ref", func(t *testing.T) {
		d := documents.Document{Status: documents.StatusSubmitting, ExternalRef: &ref}
		d.MarkFailed(documents.StatusRejected, "bad tax id")
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if d.LastError == nil || *d.LastError != "bad tax id" {
			t.Errorf("last_error = %v, want bad tax id", d.LastError)
		}
	})
}

func TestDocumentCanonical(t *testing.T) {
	d := documents.Document{
		Payload: json.RawMessage(`{"issuer":{"id":"100"},"total":15.5}`),
	}

	got, err := d.Canonical()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `"ISSUER""ID""100""TOTAL""15.5"`
	if string(got) != want {
		t.Errorf("canonical = %s, want %s", got, want)
	}
}

func TestCreateCommandValidate(t *testing.T) {
	valid := documents.CreateCommand{
		Kind:       documents.KindInvoice,
		InternalID: "INV-1",
		Payload:    json.RawMessage(`{"a":1}`),
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*documents.CreateCommand)
	}{
		{"unknown kind", func(c *documents.CreateCommand) { c.Kind = "memo" }},
		{"missing internal id", func(c *documents.CreateCommand) { c.InternalID = "" }},
		{"payload not object", func(c *documents.CreateCommand) { c.Payload = json.RawMessage(`[1]`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.mut(&cmd)
			if err := cmd.Validate(); !errors.Is(err, documents.ErrInvalidDocument) {
				t.Errorf("err = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{documents.ErrNotFound, http.StatusNotFound},
		{documents.ErrDuplicate, http.StatusConflict},
		{documents.ErrInvalidTransition, http.StatusConflict},
		{documents.ErrInvalidDocument, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := documents.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}
