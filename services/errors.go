package services

import (
	"errors"
	"fmt"

	"github.com/yeremiapane/table-service/models"
)

var (
	ErrNotFound         = errors.New("table not found")
	ErrConflict         = errors.New("transition not allowed")
	ErrBadRequest       = errors.New("invalid request")
	ErrForbidden        = errors.New("table is bound to another customer")
	ErrStoreUnavailable = errors.New("table store unavailable")

	// ErrAlreadySeated is the cause of a Conflict when a customer already
	// holds another table.
	ErrAlreadySeated = errors.New("customer already holds a table")
)

// TableError carries the operation, table and status a failure happened in.
// errors.Is matches it against the sentinel kind and, for store failures,
// against the underlying cause.
type TableError struct {
	Op     string
	Number int
	Status models.TableStatus
	Kind   error
	Reason string
	Cause  error
}

func (e *TableError) Error() string {
	msg := fmt.Sprintf("%s table %d: %v", e.Op, e.Number, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Status != "" {
		msg += fmt.Sprintf(" (status %s)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TableError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// rejection is what a transition returns when it refuses to apply.
type rejection struct {
	kind   error
	reason string
	cause  error
}

func (r *rejection) Error() string { return r.kind.Error() + ": " + r.reason }

func reject(kind error, format string, args ...interface{}) error {
	return &rejection{kind: kind, reason: fmt.Sprintf(format, args...)}
}
