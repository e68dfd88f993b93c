package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

const testSecret = "test-secret"

type profileMap map[string]*models.Profile

func (p profileMap) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if id == "broken" {
		return nil, errors.New("connection reset")
	}
	if prof, ok := p[id]; ok {
		return prof, nil
	}
	return nil, session.ErrProfileNotFound
}

func signToken(t *testing.T, secret string, sub string, expires time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name: "Sari",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func whoAmI(w http.ResponseWriter, r *http.Request) {
	u, _ := session.CurrentUser(r.Context())
	_ = json.NewEncoder(w).Encode(map[string]string{"id": u.ID, "name": u.Name})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.MessageError {
	t.Helper()
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Response
}

func TestValidateTokenWithoutSecret(t *testing.T) {
	m := NewMiddleware("", profileMap{})

	// a token signed with the empty HMAC key
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SigningString()
	require.NoError(t, err)
	mac := hmac.New(sha256.New, nil)
	mac.Write([]byte(unsigned))
	forged := unsigned + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	_, err = m.ValidateToken(context.Background(), nil, forged)
	assert.Error(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	m.Authenticate(http.HandlerFunc(whoAmI)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticate(t *testing.T) {
	m := NewMiddleware(testSecret, profileMap{})
	h := m.Authenticate(http.HandlerFunc(whoAmI))

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage", "asdfasdf", http.StatusUnauthorized},
		{"wrong secret", signToken(t, "other", "u-1", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", signToken(t, testSecret, "u-1", time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"no subject", signToken(t, testSecret, "", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"valid", signToken(t, testSecret, "u-1", time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/profile", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			if tt.code == http.StatusUnauthorized {
				assert.Equal(t, session.LoginPath, decodeError(t, rr).Redirect)
				return
			}
			var got map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, "u-1", got["id"])
			assert.Equal(t, "Sari", got["name"])
		})
	}
}

func TestAuthenticate_QueryToken(t *testing.T) {
	m := NewMiddleware(testSecret, profileMap{})
	h := m.Authenticate(http.HandlerFunc(whoAmI))

	req := httptest.NewRequest("GET", "/api/v1/ws/reports?access_token="+signToken(t, testSecret, "admin-1", time.Now().Add(time.Hour)), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole(t *testing.T) {
	m := NewMiddleware(testSecret, profileMap{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
		"u-1":     {ID: "u-1", Role: models.RoleUser},
	})

	tests := []struct {
		name     string
		userID   string
		req      session.Requirement
		code     int
		redirect string
	}{
		{"anonymous", "", session.AnyUser, http.StatusUnauthorized, session.LoginPath},
		{"any user", "u-1", session.AnyUser, http.StatusOK, ""},
		{"admin route as admin", "admin-1", session.AdminOnly, http.StatusOK, ""},
		{"admin route as resident", "u-1", session.AdminOnly, http.StatusForbidden, session.DashboardPath},
		{"admin route without profile", "u-2", session.AdminOnly, http.StatusForbidden, session.DashboardPath},
		{"resident route as resident", "u-1", session.ResidentOnly, http.StatusOK, ""},
		{"resident route without profile", "u-2", session.ResidentOnly, http.StatusOK, ""},
		{"resident route as admin", "admin-1", session.ResidentOnly, http.StatusForbidden, session.AdminPath},
		{"profile lookup fails", "broken", session.AdminOnly, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.userID != "" {
				req = req.WithContext(session.WithUser(req.Context(), session.User{ID: tt.userID}))
			}
			rr := httptest.NewRecorder()
			m.RequireRole(tt.req)(http.HandlerFunc(whoAmI)).ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			if tt.redirect != "" {
				assert.Equal(t, tt.redirect, decodeError(t, rr).Redirect)
			}
		})
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	rr := httptest.NewRecorder()
	TimeoutMiddleware(20*time.Millisecond)(slow).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Request timeout")

	rr = httptest.NewRecorder()
	TimeoutMiddleware(0)(http.HandlerFunc(whoAmI)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/api/v1/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/reports/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	_, _, err := (&responseWriter{ResponseWriter: httptest.NewRecorder()}).Hijack()
	assert.Error(t, err)
}

func TestWithQueryTimeout(t *testing.T) {
	ctx, cancel := WithQueryTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(QueryTimeout), deadline, time.Second)
}
