package enrolment

import (
	"fmt"

	"github.com/lib/pq"
)

// The flows in this package surface exactly five kinds of failure. Handlers
// map them to response codes; anything not in the taxonomy is treated as a
// FatalInternalError.

// ValidationError means the client-supplied data was malformed or missing.
// No state has been touched.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError means a uniqueness or idempotence rule was violated. No
// state has been touched.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError means a referenced entity, token or batch is absent.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError means a collaborator call failed or timed out. If local
// writes had already happened, compensation has been attempted.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// FatalInternalError means an invariant the flows rely on was violated,
// such as a business the case service references not existing locally. It
// is always surfaced, never downgraded.
type FatalInternalError struct {
	Message string
	Err     error
}

func (e *FatalInternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FatalInternalError) Unwrap() error { return e.Err }

// translateStoreError maps database failures to the taxonomy. A Postgres
// unique violation becomes a ConflictError; everything else is internal.
func translateStoreError(message string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return &ConflictError{Message: message + " already exists"}
	}
	return &FatalInternalError{Message: message, Err: err}
}
