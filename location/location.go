// Package location acquires the coordinates a report is filed at.
//
// A Probe makes exactly one attempt per call and never retries on its own. It does not
// impose a timeout either: callers that need a bound pass a context with a deadline.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

// Reasons a location could not be acquired
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrInvalidFix       = errors.New("location fix out of range")
)

// Error is returned when no usable coordinates could be acquired. A report cannot be
// submitted until the caller supplies a location.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s location: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Probe acquires a single location fix
type Probe interface {
	Acquire(ctx context.Context) (models.Location, error)
}

// ReportedFix is the fix a device reported alongside its request. Reason carries the
// device-side failure ("denied", "unavailable") when no coordinates were obtained.
type ReportedFix struct {
	Lat    *float64
	Lng    *float64
	Reason string
}

// Acquire returns the reported coordinates or a *Error describing why there are none
func (f ReportedFix) Acquire(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, &Error{Source: "device", Err: err}
	}
	switch f.Reason {
	case "":
	case "denied", "permission_denied":
		return models.Location{}, &Error{Source: "device", Err: ErrPermissionDenied}
	default:
		return models.Location{}, &Error{Source: "device", Err: ErrUnavailable}
	}
	if f.Lat == nil || f.Lng == nil {
		return models.Location{}, &Error{Source: "device", Err: ErrUnavailable}
	}
	loc := models.Location{Lat: *f.Lat, Lng: *f.Lng}
	if !loc.Valid() {
		return models.Location{}, &Error{Source: "device", Err: ErrInvalidFix}
	}
	return loc, nil
}
