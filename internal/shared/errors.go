package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a mutation would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnbalancedEntry indicates debit and credit totals differ.
	ErrUnbalancedEntry = errors.New("unbalanced journal entry")
	// ErrDuplicatePosting indicates the source reference already has an entry.
	ErrDuplicatePosting = errors.New("duplicate posting")
	// ErrConcurrencyConflict indicates a lock, serialization or uniqueness race.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrValidation indicates invalid input or an illegal state transition.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError reports a missing entity within a tenant.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError for an entity id.
func NewNotFound(entity string, id uuid.UUID) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// InsufficientStockError carries the available and requested quantities.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	SKU       string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s",
		e.SKU, e.Available.StringFixed(QuantityPlaces), e.Requested.StringFixed(QuantityPlaces))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// UnbalancedEntryError carries the rounded totals that disagreed.
type UnbalancedEntryError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("unbalanced journal entry: debits %s, credits %s",
		e.Debits.StringFixed(MoneyPlaces), e.Credits.StringFixed(MoneyPlaces))
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalancedEntry }

// DuplicatePostingError reports the existing entry for a source reference.
type DuplicatePostingError struct {
	SourceType string
	SourceID   uuid.UUID
	EntryID    uuid.UUID
}

func (e *DuplicatePostingError) Error() string {
	if e.EntryID == uuid.Nil {
		return fmt.Sprintf("duplicate posting for %s %s", e.SourceType, e.SourceID)
	}
	return fmt.Sprintf("duplicate posting for %s %s (entry %s)", e.SourceType, e.SourceID, e.EntryID)
}

func (e *DuplicatePostingError) Unwrap() error { return ErrDuplicatePosting }

// ConcurrencyConflictError wraps the underlying driver error when present.
type ConcurrencyConflictError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	msg := "concurrency conflict"
	if e.Resource != "" {
		msg += " on " + e.Resource
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches both the sentinel and the wrapped cause.
func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

// FieldError names one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field failures.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a single-field ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}
