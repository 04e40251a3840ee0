package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrNotFound            = errors.New("not found")
	ErrDomain              = errors.New("domain error")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUnreachable         = errors.New("unreachable")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// NotFoundError reports a reference to an item, location, supplier or
// supplier-item that is missing from the supplied snapshot.
type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DomainError reports an input outside its mathematical domain.
type DomainError struct {
	Field  string
	Reason string
}

func NewDomainError(field, format string, args ...any) *DomainError {
	return &DomainError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *DomainError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

type InsufficientStockError struct {
	LocationID string
	ItemID     string
	Requested  float64
	Available  float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %s at %s: requested %.2f, available %.2f",
		e.ItemID, e.LocationID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type UnreachableError struct {
	From string
	To   string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("no active route from %s to %s", e.From, e.To)
}

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }

// ConcurrencyConflictError reports that a commit was computed against a stale
// snapshot. Callers may recompute and retry.
type ConcurrencyConflictError struct {
	Resource string
	Expected int64
	Actual   int64
	Cause    error
}

func (e *ConcurrencyConflictError) Error() string {
	msg := fmt.Sprintf("%s changed since snapshot (version %d, now %d)", e.Resource, e.Expected, e.Actual)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) Unwrap() error { return e.Cause }

func (e *ConcurrencyConflictError) Retryable() bool { return true }

// IsRetryable reports whether err is worth retrying against a fresh snapshot.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
