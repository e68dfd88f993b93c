package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/moderation"
)

// Report handles report intake and moderation requests
type Report struct {
	Pipeline *intake.Pipeline
	Engine   *moderation.Engine
}

// CreateReportHandler submits a report in one request from a multipart form carrying
// image, category, description, lat and lng
func (re Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(r)
	if err != nil && !errors.Is(err, errNoImage) {
		config.ErrorStatus("failed to read image", http.StatusBadRequest, w, err)
		return
	}

	id, err := re.Pipeline.Submit(r.Context(), intake.Submission{
		Image:       img,
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		Location:    formLocation(r),
	})
	if err != nil {
		writeError(w, "failed to submit report", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": string(models.StatusPending)})
}

// formLocation returns nil unless both coordinates parse
func formLocation(r *http.Request) *models.Location {
	lat, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lat")), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lng")), 64)
	if err != nil {
		return nil
	}
	return &models.Location{Lat: lat, Lng: lng}
}

// ReportsHandler returns the moderator listing, filtered by the status, limit and page
// query parameters
func (re Report) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		config.ErrorStatus("invalid query", http.StatusBadRequest, w, err)
		return
	}
	listing, err := re.Engine.ListReports(r.Context(), filter)
	if err != nil {
		writeError(w, "failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// MyReportsHandler returns the caller's own reports
func (re Report) MyReportsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		config.ErrorStatus("invalid query", http.StatusBadRequest, w, err)
		return
	}
	reports, err := re.Engine.MyReports(r.Context(), filter)
	if err != nil {
		writeError(w, "failed to list reports", err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// StatsHandler returns the dashboard counters
func (re Report) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := re.Engine.Stats(r.Context())
	if err != nil {
		writeError(w, "failed to count reports", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// VerifyReportHandler moves a report from Pending to Verified and credits its submitter
func (re Report) VerifyReportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := re.Engine.Verify(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "failed to verify report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ResolveReportHandler moves a report from Verified to Resolved
func (re Report) ResolveReportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := re.Engine.Resolve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "failed to resolve report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type statusUpdate struct {
	Status string `json:"status"`
}

// UpdateReportStatusHandler applies the status named in the request body
func (re Report) UpdateReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body statusUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	to, ok := models.ParseStatus(body.Status)
	if !ok {
		writeError(w, "failed to update report status", moderation.ErrUnknownStatus)
		return
	}
	report, err := re.Engine.Transition(r.Context(), mux.Vars(r)["id"], to)
	if err != nil {
		writeError(w, "failed to update report status", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DeleteReportHandler removes a report. Points already credited stay.
func (re Report) DeleteReportHandler(w http.ResponseWriter, r *http.Request) {
	if err := re.Engine.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, "failed to delete report", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "report deleted"})
}

func listFilter(r *http.Request) (models.ReportFilter, error) {
	var f models.ReportFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" && !strings.EqualFold(s, "all") {
		st, ok := models.ParseStatus(s)
		if !ok {
			return f, moderation.ErrUnknownStatus
		}
		f.Status = st
	}
	var err error
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil {
			return f, errors.New("limit must be a number")
		}
	}
	if s := q.Get("page"); s != "" {
		if f.Page, err = strconv.Atoi(s); err != nil {
			return f, errors.New("page must be a number")
		}
	}
	return f, nil
}
