package service

import (
	"errors"
	"fmt"
)

// ─── Service Errors ─────────────────────────────────────────

var (
	// ErrShipmentNotFound is returned when no shipment matches a tracking code.
	ErrShipmentNotFound = errors.New("tracking code not found")

	// ErrMissingCode is returned when the tracking code is blank after trimming.
	ErrMissingCode = errors.New("shipment code is required")

	// ErrCodeExhausted is returned when every generated tracking code collided.
	ErrCodeExhausted = errors.New("could not allocate a unique tracking code")
)

// ValidationError is a rejected request naming the offending field.
// Field uses the JSON name the client sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
