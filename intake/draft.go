package intake

import (
	"sync"
	"time"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

// Sources a draft field can be filled from
const (
	SourceUser   = "user"
	SourceAI     = "ai"
	SourceDevice = "device"
	SourceExif   = "exif"
)

// Draft is the in-progress report form of one resident. All fields are guarded by mu;
// background results are applied only if imageVersion still matches the version they
// were started for.
type Draft struct {
	ID      string
	OwnerID string

	mu sync.Mutex

	image        *Image
	imageVersion int

	classifying  bool
	detections   []models.Detection
	suggested    *models.Category
	inferenceErr error

	category       *models.Category
	categorySource string

	description string

	location       *models.Location
	locationSource string
	locating       bool
	locationErr    error

	submitting bool
	createdAt  time.Time
}

// DraftView is a snapshot of a draft as shown to its owner
type DraftView struct {
	ID                string             `json:"id"`
	HasImage          bool               `json:"hasImage"`
	ImageVersion      int                `json:"imageVersion"`
	Classifying       bool               `json:"classifying"`
	Detections        []models.Detection `json:"detections"`
	SuggestedCategory *models.Category   `json:"suggestedCategory,omitempty"`
	ManualCategory    bool               `json:"manualCategory"`
	InferenceError    string             `json:"inferenceError,omitempty"`
	Category          *models.Category   `json:"category,omitempty"`
	CategorySource    string             `json:"categorySource,omitempty"`
	Description       string             `json:"description"`
	Location          *models.Location   `json:"location,omitempty"`
	LocationSource    string             `json:"locationSource,omitempty"`
	Locating          bool               `json:"locating"`
	LocationError     string             `json:"locationError,omitempty"`
	Submitting        bool               `json:"submitting"`
	Missing           []string           `json:"missing,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// ReadyToSubmit reports whether nothing blocks submission
func (v DraftView) ReadyToSubmit() bool {
	return len(v.Missing) == 0 && !v.Submitting
}

func newDraft(id, owner string, now time.Time) *Draft {
	return &Draft{ID: id, OwnerID: owner, createdAt: now}
}

// submission must be called with mu held
func (d *Draft) submission() Submission {
	s := Submission{
		Image:       d.image,
		Description: d.description,
	}
	if d.category != nil {
		s.Category = string(*d.category)
	}
	if d.location != nil {
		loc := *d.location
		s.Location = &loc
	}
	return s
}

// view must be called with mu held
func (d *Draft) view() DraftView {
	v := DraftView{
		ID:             d.ID,
		HasImage:       d.image != nil,
		ImageVersion:   d.imageVersion,
		Classifying:    d.classifying,
		Detections:     append([]models.Detection{}, d.detections...),
		ManualCategory: d.inferenceErr != nil,
		CategorySource: d.categorySource,
		Description:    d.description,
		LocationSource: d.locationSource,
		Locating:       d.locating,
		Submitting:     d.submitting,
		CreatedAt:      d.createdAt,
	}
	if d.suggested != nil {
		c := *d.suggested
		v.SuggestedCategory = &c
	}
	if d.category != nil {
		c := *d.category
		v.Category = &c
	}
	if d.location != nil {
		l := *d.location
		v.Location = &l
	}
	if d.inferenceErr != nil {
		v.InferenceError = d.inferenceErr.Error()
	}
	if d.locationErr != nil {
		v.LocationError = d.locationErr.Error()
	}
	if err, ok := d.submission().Validate().(*ValidationError); ok {
		v.Missing = err.Fields
	}
	return v
}

// resetForImage clears everything derived from the previous image. A category the
// resident picked and a device fix survive; AI and EXIF results do not.
func (d *Draft) resetForImage(img *Image) int {
	d.imageVersion++
	d.image = img
	d.detections = nil
	d.suggested = nil
	d.inferenceErr = nil
	d.classifying = true
	// the previous photo's location lookup can no longer clear the flag
	d.locating = false
	if d.categorySource == SourceAI {
		d.category = nil
		d.categorySource = ""
	}
	if d.locationSource == SourceExif {
		d.location = nil
		d.locationSource = ""
	}
	return d.imageVersion
}
