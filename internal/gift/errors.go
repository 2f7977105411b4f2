package gift

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by operations that need an established account identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound is returned when a profile, set or note does not exist for the account.
	ErrNotFound = errors.New("not found")
	// ErrSuperseded is returned when a recommendation completion arrives after a newer
	// request, a profile switch or a sign-out.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrInvalidTransition is returned when a view action is not allowed from the current view.
	ErrInvalidTransition = errors.New("invalid view transition")
)

// ValidationError reports malformed input caught before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UpstreamError reports a failed call to the recommendation service.
type UpstreamError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	// Detail is the response's detail field re-serialized as one string, possibly empty.
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return "recommendation service unreachable: " + e.Detail
	}
	if e.Detail == "" {
		return fmt.Sprintf("Request failed: %d", e.StatusCode)
	}
	return fmt.Sprintf("Request failed: %d: %s", e.StatusCode, e.Detail)
}

// PersistenceError wraps a failed call to the persistent store.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError wraps err unless it is nil or already a PersistenceError.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MigrationPartialFailure reports that a guest profile was created but its
// recommendations could not be attached.
type MigrationPartialFailure struct {
	ProfileID string
	Err       error
}

func (e *MigrationPartialFailure) Error() string {
	return fmt.Sprintf("profile %s created but recommendations were not saved: %v", e.ProfileID, e.Err)
}

func (e *MigrationPartialFailure) Unwrap() error { return e.Err }
