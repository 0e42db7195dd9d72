package services

import (
	"fmt"
	"net/http"
)

// ValidationError is a malformed or incomplete request (400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthError is a failed login, Status is 401 or 403.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

var (
	errInvalidCredentials = &AuthError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	errWrongPassword      = &AuthError{Status: http.StatusUnauthorized, Message: "Wrong password"}
	errAccountBlocked     = &AuthError{Status: http.StatusForbidden, Message: "Account blocked"}
)

// NotFoundError is a lookup by id that matched nothing.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// StoreError wraps a data store failure. Message is safe to show to clients,
// Err is only logged.
type StoreError struct {
	Op      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(op, message string, err error) error {
	return &StoreError{Op: op, Message: message, Err: err}
}
