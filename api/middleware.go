package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// tokenCacheTTL bounds how long a validated token skips signature checks
const tokenCacheTTL = time.Minute

// ProfileReader resolves the role of an authenticated user
type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// Claims are the JWT claims issued by the identity provider
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Middleware authenticates bearer tokens and gates routes by profile role
type Middleware struct {
	authenticator auth.Authenticator
	secret        []byte
	profiles      ProfileReader
}

// NewMiddleware sets up go-guardian with a cached bearer strategy validating HS256 tokens
// signed with secret
func NewMiddleware(secret string, profiles ProfileReader) *Middleware {
	m := &Middleware{secret: []byte(secret), profiles: profiles}
	cache := store.NewFIFO(context.Background(), tokenCacheTTL)
	tokenStrategy := bearer.New(m.ValidateToken, cache)

	m.authenticator = auth.New()
	m.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
	return m
}

// ValidateToken checks the signature and expiry of a JWT and returns its subject
func (m *Middleware) ValidateToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("no token signing secret configured")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return auth.NewDefaultUser(claims.Name, claims.Subject, nil, nil), nil
}

// Authenticate puts the caller into the request context or answers 401 with the login redirect
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// browsers cannot set headers on websocket upgrades
		if r.Header.Get("Authorization") == "" {
			if t := r.URL.Query().Get("access_token"); t != "" {
				r.Header.Set("Authorization", "Bearer "+t)
			}
		}
		info, err := m.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Debugw("unauthorized", "url", r.URL.Path, "error", err)
			config.WriteError(w, http.StatusUnauthorized, models.MessageError{
				Message:  "unauthorized",
				Error:    err.Error(),
				Redirect: session.LoginPath,
			})
			return
		}
		ctx := session.WithUser(r.Context(), session.User{ID: info.ID(), Name: info.UserName()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through only if session.Guard admits the caller's role
func (m *Middleware) RequireRole(req session.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, authenticated := session.CurrentUser(r.Context())
			role := models.RoleUser
			if authenticated && req != session.AnyUser {
				p, err := m.profiles.GetProfile(r.Context(), u.ID)
				switch {
				case errors.Is(err, session.ErrProfileNotFound):
				case err != nil:
					config.ErrorStatus("failed to load profile", http.StatusInternalServerError, w, err)
					return
				default:
					role = p.RoleOrDefault()
				}
			}

			allowed, redirect := session.Guard(authenticated, role, req)
			if !allowed {
				code := http.StatusForbidden
				if !authenticated {
					code = http.StatusUnauthorized
				}
				config.WriteError(w, code, models.MessageError{
					Message:  "access denied",
					Error:    http.StatusText(code),
					Redirect: redirect,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
