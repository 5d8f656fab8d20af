package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique violations and on serialization
	// failures surfaced by concurrent stat updates. Callers may retry.
	ErrConflict = errors.New("conflict")
)

// mapPgError translates Postgres error codes into store sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return ErrConflict
		case "23503":
			// Foreign key violation: the referenced playbook or case is gone.
			return ErrNotFound
		}
	}
	return err
}
