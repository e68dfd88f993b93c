package handlers

import (
	"net/http"

	"github.com/linesmerrill/lapor-sampah-api/classifier"
	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/models"
)

// Classify runs object detection on a photo without creating anything
type Classify struct {
	Detector intake.Detector
}

// ClassifyResponse lists the trash detections and the category they point to
type ClassifyResponse struct {
	Detections        []models.Detection `json:"detections"`
	SuggestedCategory *models.Category   `json:"suggestedCategory"`
}

// ClassifyHandler detects waste in the uploaded image. On failure the client falls back
// to manual category selection.
func (c Classify) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(r)
	if err != nil {
		config.ErrorStatus("failed to read image", http.StatusBadRequest, w, err)
		return
	}
	detections, err := c.Detector.Detect(r.Context(), img.Data)
	if err != nil {
		writeError(w, "failed to classify image", err)
		return
	}
	hints := classifier.FilterTrash(detections)
	if hints == nil {
		hints = []models.Detection{}
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Detections:        hints,
		SuggestedCategory: classifier.SuggestCategory(detections),
	})
}
