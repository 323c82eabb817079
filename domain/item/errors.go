package item

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for items.
var (
	// ErrNotFound indicates no item has the requested ID.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidInput indicates an item body failed validation.
	ErrInvalidInput = errors.New("invalid item")
)

// NotFoundError names the missing ID.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Item with ID %d not found", e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents a single field failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of field failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is reports whether target is ErrInvalidInput.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}
