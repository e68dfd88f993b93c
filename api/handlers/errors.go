package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/classifier"
	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/location"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/moderation"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// FallbackManual tells the client to let the resident pick the category by hand
const FallbackManual = "manual"

// writeError maps a lifecycle error onto its HTTP status and error body
func writeError(w http.ResponseWriter, message string, err error) {
	var (
		validation *intake.ValidationError
		locErr     *location.Error
		inference  *classifier.InferenceError
		storage    *intake.StorageError
		persist    *intake.PersistenceError
		illegal    *moderation.IllegalTransitionError
	)
	body := models.MessageError{Message: message, Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	case errors.As(err, &validation):
		code = http.StatusBadRequest
		body.Error = "missing or invalid: " + strings.Join(validation.Fields, ", ")
	case errors.Is(err, session.ErrAnonymous):
		code = http.StatusUnauthorized
		body.Redirect = session.LoginPath
	case errors.As(err, &locErr):
		code = http.StatusUnprocessableEntity
	case errors.As(err, &inference):
		code = http.StatusUnprocessableEntity
		body.Fallback = FallbackManual
	case errors.As(err, &storage):
		code = http.StatusBadGateway
	case errors.As(err, &persist):
		code = http.StatusInternalServerError
	case errors.As(err, &illegal), errors.Is(err, intake.ErrSubmissionInFlight):
		code = http.StatusConflict
	case errors.Is(err, moderation.ErrReportNotFound), errors.Is(err, intake.ErrDraftNotFound):
		code = http.StatusNotFound
	case errors.Is(err, moderation.ErrUnknownStatus):
		code = http.StatusBadRequest
	}
	config.WriteError(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		zap.S().Debugw("failed to write response", "error", err)
	}
}
