// Package apperr holds the error kinds shared by every layer. Handlers map
// them to responses with errors.As; services wrap causes with %w.
package apperr

import (
	"errors"
	"fmt"
)

var ErrUnavailable = errors.New("feature unavailable")

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Service: service, Err: err}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AuthError is returned at the entry of every protected operation when no
// live session backs the request.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "unauthorized: " + e.Reason
}

func Unauthorized(reason string) error {
	return &AuthError{Reason: reason}
}

func Unavailable(feature, missing string) error {
	return fmt.Errorf("%w: %s requires %s", ErrUnavailable, feature, missing)
}
