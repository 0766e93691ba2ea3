package service

import (
	"errors"
	"fmt"
	"strings"

	"go-ledger-ws/pkg/validator"
)

var (
	// ErrValidation is wrapped by every ValidationError
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is wrapped by every NotFoundError
	ErrNotFound = errors.New("not found")

	ErrReadOnlyEntity = errors.New("entity is derived from the user directory and is read-only")
	ErrEntityInUse    = errors.New("entity still has ledger transactions")
	ErrSKUExists      = errors.New("SKU already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// ValidationError reports malformed input. It is always returned before any
// state is touched.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: field '%s' %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a reference to a missing transaction, entity,
// product or user.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// validateRequest runs struct-tag validation and folds the first failure
// into a ValidationError.
func validateRequest(req interface{}) error {
	errs := validator.ValidateStruct(req)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	msg := "failed on tag '" + first.Tag + "'"
	if first.Value != "" {
		msg += " (" + first.Value + ")"
	}
	return invalid(first.FailedField, msg)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSKUExists) ||
		errors.Is(err, ErrEmailExists)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
