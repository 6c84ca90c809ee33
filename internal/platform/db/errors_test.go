package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/shared"
)

func TestMapErrorConflicts(t *testing.T) {
	for _, code := range []string{CodeUniqueViolation, CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable, CodeQueryCanceled} {
		pgErr := &pgconn.PgError{Code: code, ConstraintName: "uq_test"}
		mapped := MapError(fmt.Errorf("exec: %w", pgErr), "items")
		require.ErrorIs(t, mapped, shared.ErrConcurrencyConflict, code)

		var conflict *shared.ConcurrencyConflictError
		require.True(t, errors.As(mapped, &conflict))
		require.Equal(t, "items", conflict.Resource)
		require.ErrorIs(t, mapped, pgErr)
	}
}

func TestMapErrorPassThrough(t *testing.T) {
	plain := errors.New("boom")
	require.Same(t, plain, MapError(plain, "items"))
	require.NoError(t, MapError(nil, "items"))

	other := &pgconn.PgError{Code: "22003"}
	require.Same(t, error(other), MapError(other, "items"))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "uq_journal_source"})
	require.True(t, IsUniqueViolation(err, "uq_journal_source"))
	require.True(t, IsUniqueViolation(err, ""))
	require.False(t, IsUniqueViolation(err, "uq_other"))
	require.False(t, IsUniqueViolation(errors.New("x"), ""))
}
