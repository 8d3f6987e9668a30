package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/einvoice/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
	errInvalid   = errors.New("invalid")

	mapping = repository.Mapping{
		NotFound:  errNotFound,
		Duplicate: errDuplicate,
		Invalid:   errInvalid,
	}
)

func TestMapError(t *testing.T) {
	other := errors.New("some other error")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"check violation", &pgconn.PgError{Code: "23514"}, errInvalid},
		{"foreign key passthrough", fk, fk},
		{"other passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, mapping)
			if got != tt.want {
				t.Errorf("MapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMapErrorPartialMapping(t *testing.T) {
	got := repository.MapError(sql.ErrNoRows, repository.Mapping{Duplicate: errDuplicate})
	if !errors.Is(got, sql.ErrNoRows) {
		t.Errorf("unmapped not found should pass through, got %v", got)
	}
}
