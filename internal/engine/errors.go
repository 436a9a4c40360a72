package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrAlreadyAssigned is returned by a gateway when the attribution exists
	ErrAlreadyAssigned = errors.New("engine: role already assigned")

	// ErrNotAssigned is returned by a gateway when removing an absent attribution
	ErrNotAssigned = errors.New("engine: role not assigned")

	// ErrModalBusy is returned when opening a modal that is not idle
	ErrModalBusy = errors.New("engine: modal already open")

	// ErrInvalidTransition is returned for a modal transition not allowed from the current state
	ErrInvalidTransition = errors.New("engine: invalid modal transition")

	// ErrStaleRefresh is returned when a refresh result was superseded or the session closed
	ErrStaleRefresh = errors.New("engine: stale refresh discarded")

	// ErrUnknownRole is returned when a role id or name is not in the catalog
	ErrUnknownRole = errors.New("engine: unknown role")
)

// ValidationError is raised before any gateway call when input is unusable.
// It is recoverable by correcting the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// OpError attaches the user and role of a single attribution call to its cause
type OpError struct {
	Op     string
	UserID int64
	RoleID int64
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s role %d for user %d: %v", e.Op, e.RoleID, e.UserID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// BulkError aggregates the per-user failures of a bulk or diff run.
// Sibling requests that succeeded are not rolled back.
type BulkError struct {
	OperationID string
	Attempted   int
	errs        *multierror.Error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%d of %d requests failed: %s", e.Len(), e.Attempted, joinErrors(e.Errors()))
}

// Errors returns the individual failures
func (e *BulkError) Errors() []error {
	if e.errs == nil {
		return nil
	}
	return e.errs.WrappedErrors()
}

// Len returns the number of failures
func (e *BulkError) Len() int {
	return len(e.Errors())
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (e *BulkError) Unwrap() []error {
	return e.Errors()
}

// FailedUsers returns the sorted ids of the users whose request failed
func (e *BulkError) FailedUsers() []int64 {
	seen := NewIDSet()
	for _, err := range e.Errors() {
		var op *OpError
		if errors.As(err, &op) {
			seen.Add(op.UserID)
		}
	}
	return seen.Slice()
}

func joinErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// Describe turns any engine or gateway error into an operator-facing message
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var verr *ValidationError
	var berr *BulkError
	switch {
	case errors.As(err, &verr):
		return "Invalid input: " + verr.Error()
	case errors.As(err, &berr):
		return fmt.Sprintf("%d of %d changes failed, re-run the operation to converge: %s",
			berr.Len(), berr.Attempted, joinErrors(berr.Errors()))
	case errors.Is(err, ErrModalBusy):
		return "Another edit is already in progress"
	case errors.Is(err, ErrInvalidTransition):
		return "That action is not available right now"
	case errors.Is(err, ErrStaleRefresh):
		return "The list changed while loading, showing the latest data"
	case errors.Is(err, ErrUnknownRole):
		return "Unknown role: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "Operation cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Operation timed out"
	default:
		return "Request failed: " + err.Error()
	}
}
