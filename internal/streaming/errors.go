package streaming

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// Common errors
var (
	// ErrSessionNotFound is returned when a channel has no running session
	ErrSessionNotFound = errors.New("channel session not found")

	// ErrManagerStopped is returned when the manager has been shut down
	ErrManagerStopped = errors.New("session manager is stopped")

	// ErrChannelDisabled is returned when starting a disabled channel
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInstantOutOfRange is returned for position queries too far behind
	// or ahead of now for the session's window
	ErrInstantOutOfRange = errors.New("instant is outside the session window")
)

// IsSessionNotFound checks if the error is a missing-session error
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// ErrorType represents the type of session error
type ErrorType int

const (
	// ErrorTypeSchedule indicates the schedule file could not be parsed
	ErrorTypeSchedule ErrorType = iota
	// ErrorTypeGeneration indicates the generator failed
	ErrorTypeGeneration
	// ErrorTypeCatalog indicates collection resolution failed
	ErrorTypeCatalog
	// ErrorTypeCanceled indicates generation was canceled or timed out
	ErrorTypeCanceled
	// ErrorTypeWatch indicates the schedule watcher could not be set up
	ErrorTypeWatch
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeSchedule:
		return "schedule"
	case ErrorTypeGeneration:
		return "generation"
	case ErrorTypeCatalog:
		return "catalog"
	case ErrorTypeCanceled:
		return "canceled"
	case ErrorTypeWatch:
		return "watch"
	default:
		return "unknown"
	}
}

// ErrorSeverity represents the severity of a session error
type ErrorSeverity int

const (
	// SeverityInfo represents expected events such as shutdown cancellation
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning represents issues the session keeps serving through
	SeverityWarning
	// SeverityError represents failures that need the schedule or catalog fixed
	SeverityError
)

// String returns the string representation of ErrorSeverity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionError represents a classified session failure
type SessionError struct {
	Type      ErrorType
	Severity  ErrorSeverity
	ChannelID uuid.UUID
	Message   string
	Cause     error

	// Recoverable reports whether a later refresh may succeed without the
	// schedule file changing
	Recoverable bool
}

// NewSessionError creates a new SessionError with the given type, message, and cause
func NewSessionError(errorType ErrorType, channelID uuid.UUID, message string, cause error) *SessionError {
	severity, recoverable := classifyErrorTypeAttributes(errorType)
	return &SessionError{
		Type:        errorType,
		Severity:    severity,
		ChannelID:   channelID,
		Message:     message,
		Cause:       cause,
		Recoverable: recoverable,
	}
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// classifyErrorTypeAttributes returns severity and recoverability for an error type
func classifyErrorTypeAttributes(errorType ErrorType) (ErrorSeverity, bool) {
	switch errorType {
	case ErrorTypeSchedule:
		return SeverityError, false // Needs the file fixed
	case ErrorTypeGeneration:
		return SeverityError, false // Needs the file or catalog fixed
	case ErrorTypeCatalog:
		return SeverityWarning, true // Store may come back
	case ErrorTypeCanceled:
		return SeverityInfo, true
	case ErrorTypeWatch:
		return SeverityWarning, true // Polling still works
	default:
		return SeverityError, false
	}
}

// ClassifyError classifies a generic error raised while running a session
func ClassifyError(channelID uuid.UUID, err error) *SessionError {
	if err == nil {
		return nil
	}

	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr
	}

	var parseErr *schedule.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, schedule.ErrPlayoutNotFound) {
		return NewSessionError(ErrorTypeSchedule, channelID, "schedule could not be parsed", err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewSessionError(ErrorTypeCanceled, channelID, "generation canceled", err)
	}

	var genErr *playout.GenerationError
	if errors.As(err, &genErr) {
		return NewSessionError(ErrorTypeGeneration, channelID, "playlist generation failed", err)
	}

	return NewSessionError(ErrorTypeCatalog, channelID, "collection resolution failed", err)
}
