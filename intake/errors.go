package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linesmerrill/lapor-sampah-api/session"
)

var (
	// ErrUnauthenticated is matched by every *UnauthenticatedError
	ErrUnauthenticated = session.ErrAnonymous
	// ErrSubmissionInFlight is returned when a draft is submitted twice concurrently
	ErrSubmissionInFlight = errors.New("submission already in progress")
	// ErrDraftNotFound is returned for unknown, expired or foreign drafts
	ErrDraftNotFound = errors.New("draft not found")
)

// ValidationError names every required field that is missing or invalid
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// UnauthenticatedError is returned when there is no current user to submit as
type UnauthenticatedError struct{}

func (e *UnauthenticatedError) Error() string { return "submitting a report requires a signed in user" }

func (e *UnauthenticatedError) Unwrap() error { return ErrUnauthenticated }

// StorageError is returned when the photo could not be stored. No report was written.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to store image %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PersistenceError is returned when the report row could not be written after the photo
// was stored. The photo at ImageRef is left behind for the orphan sweeper.
type PersistenceError struct {
	ImageRef string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save report: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
