package handlers

import (
	"errors"
	"net/http"

	"github.com/linesmerrill/lapor-sampah-api/api"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// Profile serves the caller's own profile and point balance
type Profile struct {
	DB api.ProfileReader
}

// ProfileHandler returns the caller's profile. Users without a profile row yet have no points.
func (p Profile) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	u, err := session.Require(r.Context())
	if err != nil {
		writeError(w, "failed to get profile", err)
		return
	}
	prof, err := p.DB.GetProfile(r.Context(), u.ID)
	if errors.Is(err, session.ErrProfileNotFound) {
		prof = &models.Profile{ID: u.ID, FullName: u.Name, Role: models.RoleUser}
	} else if err != nil {
		writeError(w, "failed to get profile", err)
		return
	}
	prof.Role = prof.RoleOrDefault()
	writeJSON(w, http.StatusOK, prof)
}
