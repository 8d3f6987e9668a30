package documents

import (
	"net/url"

	"github.com/JaimeStill/einvoice/pkg/query"
	"github.com/JaimeStill/einvoice/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("kind", "Kind").
	Project("internal_id", "InternalID").
	Project("status", "Status").
	Project("payload", "Payload").
	Project("signature_key", "SignatureKey").
	Project("external_ref", "ExternalRef").
	Project("last_error", "LastError").
	Project("attempts", "Attempts").
	Project("submitted_at", "SubmittedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Statuses matches any of the listed states.
type Filters struct {
	Statuses    []string `json:"statuses,omitempty"`
	Kind        *string  `json:"kind,omitempty"`
	InternalID  *string  `json:"internal_id,omitempty"`
	ExternalRef *string  `json:"external_ref,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereIn("Status", f.Statuses).
		WhereEquals("Kind", f.Kind).
		WhereContains("InternalID", f.InternalID).
		WhereEquals("ExternalRef", f.ExternalRef)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// The status parameter may repeat.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	for _, s := range values["status"] {
		if s != "" {
			f.Statuses = append(f.Statuses, s)
		}
	}

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}

	if id := values.Get("internal_id"); id != "" {
		f.InternalID = &id
	}

	if ref := values.Get("external_ref"); ref != "" {
		f.ExternalRef = &ref
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var (
		d       Document
		payload []byte
	)
	err := s.Scan(
		&d.ID,
		&d.Kind,
		&d.InternalID,
		&d.Status,
		&payload,
		&d.SignatureKey,
		&d.ExternalRef,
		&d.LastError,
		&d.Attempts,
		&d.SubmittedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	d.Payload = payload
	return d, err
}
