// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is wrapped by TransitionError
var ErrInvalidTransition = errors.New("invalid task status transition")

// ValidationError reports bad input shape or content
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// NewValidation builds a ValidationError from one or more violations
func NewValidation(violations ...string) error {
	return &ValidationError{Violations: violations}
}

// NotFoundError reports a missing template, task or file
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func NewNotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// ProviderError wraps a failure returned by a delivery channel
type ProviderError struct {
	Channel string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Channel, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewProvider(channel string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Channel: channel, Err: err}
}

// PersistenceError reports an unreadable or unwritable durable store.
// Error() is safe to log; callers facing users should print PublicMessage.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const PublicMessage = "internal storage error"

func NewPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// ParseError reports a malformed row in a delimited contact source
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransitionError reports a scheduler state change that the state machine forbids
type TransitionError struct {
	TaskID string
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s task %s in status %s", e.Action, e.TaskID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
