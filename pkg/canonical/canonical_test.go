package canonical_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/einvoice/pkg/canonical"
)

func TestSerialize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "flat object",
			input: `{"documentType":"I","dateTimeIssued":"2026-01-02T10:00:00Z"}`,
			want:  `"DOCUMENTTYPE""I""DATETIMEISSUED""2026-01-02T10:00:00Z"`,
		},
		{
			name:  "nested object",
			input: `{"issuer":{"id":"113317713","address":{"country":"EG"}}}`,
			want:  `"ISSUER""ID""113317713""ADDRESS""COUNTRY""EG"`,
		},
		{
			name:  "array elements repeat property name",
			input: `{"invoiceLines":[{"description":"a"},{"description":"b"}]}`,
			want:  `"INVOICELINES""INVOICELINES""DESCRIPTION""a""INVOICELINES""DESCRIPTION""b"`,
		},
		{
			name:  "numbers keep source text",
			input: `{"totalAmount":100.50,"quantity":2}`,
			want:  `"TOTALAMOUNT""100.50""QUANTITY""2"`,
		},
		{
			name:  "booleans and null",
			input: `{"flag":true,"other":false,"missing":null}`,
			want:  `"FLAG""true""OTHER""false""MISSING"""`,
		},
		{
			name:  "top-level signatures excluded",
			input: `{"documentType":"I","signatures":[{"signatureType":"I","value":"abc"}]}`,
			want:  `"DOCUMENTTYPE""I"`,
		},
		{
			name:  "quotes escaped",
			input: `{"description":"say \"hi\""}`,
			want:  `"DESCRIPTION""say \"hi\""`,
		},
		{
			name:  "empty array",
			input: `{"taxTotals":[]}`,
			want:  `"TAXTOTALS"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonical.Serialize([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSerializeNestedSignaturesKept(t *testing.T) {
	got, err := canonical.Serialize([]byte(`{"issuer":{"signatures":"x"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `"ISSUER""SIGNATURES""x"`; string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSerializeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"array root", `[1,2]`, canonical.ErrNotObject},
		{"scalar root", `"x"`, canonical.ErrNotObject},
		{"trailing", `{"a":"b"}{"c":"d"}`, canonical.ErrTrailingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := canonical.Serialize([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := canonical.Serialize([]byte(`{"a":`)); err == nil {
		t.Error("expected error for truncated input")
	}
}
