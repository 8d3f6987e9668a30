package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Mapping names the domain errors a repository translates database errors into.
// A nil field leaves the matching database error unchanged.
type Mapping struct {
	NotFound  error
	Duplicate error
	Invalid   error
}

// MapError translates database errors to domain errors.
// sql.ErrNoRows maps to NotFound, PostgreSQL unique violations (23505) to Duplicate,
// and check violations (23514) to Invalid. Other errors are returned unchanged.
func MapError(err error, m Mapping) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) && m.NotFound != nil {
		return m.NotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && m.Duplicate != nil:
			return m.Duplicate
		case pgErr.Code == pgCheckViolation && m.Invalid != nil:
			return m.Invalid
		}
	}

	return err
}
