package service

import (
	"errors"
	"fmt"

	"github.com/role-assignment-api/internal/validation"
)

var (
	// ErrNotFound is wrapped by errors about a missing user, role or attribution
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped by errors about an already existing record
	ErrConflict = errors.New("already exists")
)

// InvalidInputError reports a payload or query the service refuses
type InvalidInputError struct {
	Errors validation.ValidationErrors
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Errors.Error()
}

// Fields returns the names of the rejected fields
func (e *InvalidInputError) Fields() []string {
	return e.Errors.Fields()
}

func invalidInput(field, message string) error {
	return &InvalidInputError{Errors: validation.ValidationErrors{{Field: field, Message: message}}}
}

// asInvalidInput converts validator output into *InvalidInputError
func asInvalidInput(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return &InvalidInputError{Errors: verrs}
	}
	return err
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d %w", what, id, ErrNotFound)
}

func conflict(msg string) error {
	return fmt.Errorf("%s %w", msg, ErrConflict)
}
