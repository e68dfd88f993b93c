// Package session carries the authenticated caller through a request context and
// decides where role-gated navigation should land.
package session

import (
	"context"
	"errors"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

// User is the authenticated caller as resolved by the identity provider
type User struct {
	ID   string
	Name string
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

var (
	// ErrAnonymous is returned by Require when the request carries no identity
	ErrAnonymous = errors.New("no authenticated user")
	// ErrProfileNotFound is returned by profile lookups for users without a profile row
	ErrProfileNotFound = errors.New("profile not found")
)

// CurrentUser returns the caller stored on ctx. ok is false when the request is anonymous.
func CurrentUser(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	if !ok || u.ID == "" {
		return User{}, false
	}
	return u, true
}

// Require is CurrentUser for callers that cannot proceed anonymously
func Require(ctx context.Context) (User, error) {
	u, ok := CurrentUser(ctx)
	if !ok {
		return User{}, ErrAnonymous
	}
	return u, nil
}

// Requirement describes who may reach a route
type Requirement int

// Route requirements
const (
	// AnyUser admits every authenticated caller
	AnyUser Requirement = iota
	// AdminOnly admits callers whose profile role is admin
	AdminOnly
	// ResidentOnly admits callers whose profile role is not admin
	ResidentOnly
)

// Redirect targets returned by Guard
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	AdminPath     = "/admin"
)

// Guard decides whether a caller may pass a route requirement. When allowed is false,
// redirect is the page the caller should be sent to instead.
func Guard(authenticated bool, role models.Role, req Requirement) (allowed bool, redirect string) {
	if !authenticated {
		return false, LoginPath
	}
	switch req {
	case AdminOnly:
		if role != models.RoleAdmin {
			return false, DashboardPath
		}
	case ResidentOnly:
		if role == models.RoleAdmin {
			return false, AdminPath
		}
	}
	return true, ""
}
