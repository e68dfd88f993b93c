package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/location"
	"github.com/linesmerrill/lapor-sampah-api/models"
)

// Draft handles the step by step report form
type Draft struct {
	Drafts *intake.DraftService
}

// CreateDraftHandler opens an empty draft for the caller
func (d Draft) CreateDraftHandler(w http.ResponseWriter, r *http.Request) {
	view, err := d.Drafts.Create(r.Context())
	if err != nil {
		writeError(w, "failed to create draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// DraftHandler returns the current state of a draft
func (d Draft) DraftHandler(w http.ResponseWriter, r *http.Request) {
	view, err := d.Drafts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "failed to get draft", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DraftImageHandler replaces the draft photo and starts classification in the background
func (d Draft) DraftImageHandler(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(r)
	if err != nil {
		config.ErrorStatus("failed to read image", http.StatusBadRequest, w, err)
		return
	}
	view, err := d.Drafts.SelectImage(r.Context(), mux.Vars(r)["id"], *img)
	if err != nil {
		writeError(w, "failed to set image", err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

type locationUpdate struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error"`
}

// DraftLocationHandler records the device fix, or the reason the device could not get one
func (d Draft) DraftLocationHandler(w http.ResponseWriter, r *http.Request) {
	var body locationUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	view, err := d.Drafts.SetLocation(r.Context(), mux.Vars(r)["id"], location.ReportedFix{
		Lat:    body.Lat,
		Lng:    body.Lng,
		Reason: body.Error,
	})
	var locErr *location.Error
	if errors.As(err, &locErr) {
		writeJSON(w, http.StatusUnprocessableEntity, view)
		return
	}
	if err != nil {
		writeError(w, "failed to set location", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type draftUpdate struct {
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

// UpdateDraftHandler sets the category chosen by the resident and/or the description
func (d Draft) UpdateDraftHandler(w http.ResponseWriter, r *http.Request) {
	var body draftUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	view, err := d.Drafts.Update(r.Context(), mux.Vars(r)["id"], intake.DraftPatch{
		Category:    body.Category,
		Description: body.Description,
	})
	if err != nil {
		writeError(w, "failed to update draft", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitDraftHandler turns the draft into a Pending report
func (d Draft) SubmitDraftHandler(w http.ResponseWriter, r *http.Request) {
	id, err := d.Drafts.Submit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "failed to submit report", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": string(models.StatusPending)})
}

// DiscardDraftHandler drops a draft without submitting it
func (d Draft) DiscardDraftHandler(w http.ResponseWriter, r *http.Request) {
	if err := d.Drafts.Discard(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, "failed to discard draft", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "draft discarded"})
}
