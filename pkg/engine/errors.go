package engine

import (
	"errors"
	"fmt"
)

// ErrorKind is the discriminant carried by every MigrationError. Callers
// branch on the kind rather than on concrete error types.
type ErrorKind string

const (
	// ErrorKindStateCorrupt indicates the persisted snapshot exists but
	// cannot be parsed. The migration cannot resume until the snapshot is
	// repaired or a backup is restored.
	ErrorKindStateCorrupt ErrorKind = "state_corrupt"

	// ErrorKindPersistence indicates the state manager could not durably
	// record progress. Treated as fatal by the orchestrator.
	ErrorKindPersistence ErrorKind = "persistence"

	// ErrorKindStepFailed indicates a step executor raised.
	ErrorKindStepFailed ErrorKind = "step_failed"

	// ErrorKindCheckpoint indicates a checkpoint condition or handler
	// failed.
	ErrorKindCheckpoint ErrorKind = "checkpoint"

	// ErrorKindTransition indicates an attempted forward skip or an
	// unknown step.
	ErrorKindTransition ErrorKind = "transition"

	// ErrorKindNotFound indicates a missing migration, backup, or
	// executor registration.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindConfig indicates invalid configuration.
	ErrorKindConfig ErrorKind = "config"
)

// MigrationError is the single tagged error type used across the engine.
// The Kind discriminant plus the structured fields replace a class
// hierarchy; wrap call-site context with fmt.Errorf("...: %w", err).
type MigrationError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Step is the migration step involved, if applicable.
	Step MigrationStep `json:"step,omitempty"`

	// MigrationID is the migration attempt involved, if applicable.
	MigrationID string `json:"migration_id,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Step != "" {
		msg += fmt.Sprintf(" (step=%s)", e.Step)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Is matches MigrationErrors by kind so callers can use errors.Is with a
// bare kind sentinel.
func (e *MigrationError) Is(target error) bool {
	t, ok := target.(*MigrationError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithStep attaches step context to the error.
func (e *MigrationError) WithStep(step MigrationStep) *MigrationError {
	e.Step = step
	return e
}

// WithMigration attaches the migration attempt ID to the error.
func (e *MigrationError) WithMigration(id string) *MigrationError {
	e.MigrationID = id
	return e
}

// NewStateCorruptError creates a state_corrupt error.
func NewStateCorruptError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindStateCorrupt, Message: message, Err: err}
}

// NewPersistenceError creates a persistence error.
func NewPersistenceError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindPersistence, Message: message, Err: err}
}

// NewStepFailedError creates a step_failed error.
func NewStepFailedError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindStepFailed, Message: message, Err: err}
}

// NewCheckpointError creates a checkpoint error.
func NewCheckpointError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindCheckpoint, Message: message, Err: err}
}

// NewTransitionError creates a transition error.
func NewTransitionError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindTransition, Message: message, Err: err}
}

// NewNotFoundError creates a not_found error.
func NewNotFoundError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindNotFound, Message: message, Err: err}
}

// NewConfigError creates a config error.
func NewConfigError(message string, err error) *MigrationError {
	return &MigrationError{Kind: ErrorKindConfig, Message: message, Err: err}
}

// IsKind reports whether err is a MigrationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *MigrationError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsStateCorrupt reports whether err is a state_corrupt error.
func IsStateCorrupt(err error) bool {
	return IsKind(err, ErrorKindStateCorrupt)
}

// IsNotFound reports whether err is a not_found error.
func IsNotFound(err error) bool {
	return IsKind(err, ErrorKindNotFound)
}
