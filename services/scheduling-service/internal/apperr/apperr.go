package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError names the missing resource. It unwraps to ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Resource, ErrNotFound)
	}
	return fmt.Sprintf("%s %q: %v", e.Resource, e.ID, ErrNotFound)
}

func (e NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidInputError is returned before any computation starts. It unwraps to ErrInvalidInput.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func NotFound(resource, id string) error {
	return NotFoundError{Resource: resource, ID: id}
}

func InvalidInput(field, reason string) error {
	return InvalidInputError{Field: field, Reason: reason}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
