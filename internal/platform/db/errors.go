package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
	CodeQueryCanceled        = "57014"
)

// MapError translates lock, serialization and uniqueness failures into
// shared.ConcurrencyConflictError. Other errors are returned unchanged.
func MapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case CodeUniqueViolation:
		return &shared.ConcurrencyConflictError{Resource: resource, Reason: "unique constraint " + pgErr.ConstraintName, Err: err}
	case CodeSerializationFailure:
		return &shared.ConcurrencyConflictError{Resource: resource, Reason: "serialization failure", Err: err}
	case CodeDeadlockDetected:
		return &shared.ConcurrencyConflictError{Resource: resource, Reason: "deadlock detected", Err: err}
	case CodeLockNotAvailable:
		return &shared.ConcurrencyConflictError{Resource: resource, Reason: "lock timeout", Err: err}
	case CodeQueryCanceled:
		return &shared.ConcurrencyConflictError{Resource: resource, Reason: "statement timeout", Err: err}
	}
	return err
}

// IsUniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
