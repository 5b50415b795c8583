package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (malformed date or time, missing field, end before start). It is always
// raised before any state is touched.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrPrecondition is returned when an operation cannot run against the
// current configuration, e.g. exporting a group with no must-visit set.
// Handlers should map this to HTTP 412 Precondition Failed.
var ErrPrecondition = errors.New("precondition failed")

// ErrConflict is returned when a mutation would violate a scheduling rule
// and the caller has not opted to proceed anyway.
// Handlers should map this to HTTP 409 Conflict.
var ErrConflict = errors.New("conflict")

// ErrConcurrency is returned when the caller acted on stale state: a save
// whose revision no longer matches, or a snapshot token that was already
// used or superseded. The caller must reload and retry.
// Handlers should map this to HTTP 409 Conflict.
var ErrConcurrency = errors.New("stale state")

// PreconditionError names the groups that blocked an operation.
type PreconditionError struct {
	Reason   string
	GroupIDs []uuid.UUID
}

func (e *PreconditionError) Error() string {
	ids := make([]string, len(e.GroupIDs))
	for i, id := range e.GroupIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s: %s", ErrPrecondition, e.Reason, strings.Join(ids, ", "))
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// ConflictError carries the scheduling conflicts that blocked a mutation.
type ConflictError struct {
	Reports []ConflictReport
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflicting placement(s)", ErrConflict, len(e.Reports))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
