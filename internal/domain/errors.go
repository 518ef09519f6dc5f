package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrMissingIP rejects provisioning without a target address
	ErrMissingIP = errors.New("ip required")
	// ErrInvalidPollInterval rejects provisioning without a positive interval
	ErrInvalidPollInterval = errors.New("poll interval must be a positive number of milliseconds")
	// ErrNotMonitored is returned for series requests on objects without an open session
	ErrNotMonitored = errors.New("object is not being monitored")
	// ErrUnsupported is returned when the configured collaborator lacks an operation
	ErrUnsupported = errors.New("operation not supported by source")
)

// TransportError wraps any failed collaborator fetch
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err unless it is already a TransportError
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
