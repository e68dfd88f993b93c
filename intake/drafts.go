package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/classifier"
	"github.com/linesmerrill/lapor-sampah-api/location"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// Detector classifies a photo
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]models.Detection, error)
}

// Submitter files a completed submission
type Submitter interface {
	Submit(ctx context.Context, s Submission) (string, error)
}

// ImageProbe returns a location probe reading from the photo itself
type ImageProbe func(image []byte) location.Probe

// ExifLocator reads GPS coordinates from the photo's EXIF block
func ExifLocator(image []byte) location.Probe {
	return location.ExifProbe{Image: image}
}

// DefaultDraftTTL is how long an untouched draft is kept
const DefaultDraftTTL = 2 * time.Hour

// DraftService keeps the in-progress report forms of residents
type DraftService struct {
	submitter  Submitter
	detector   Detector
	imageProbe ImageProbe
	drafts     *gocache.Cache
	now        func() time.Time

	wg sync.WaitGroup
}

// DraftOption configures a DraftService
type DraftOption func(*DraftService)

// WithDraftTTL sets how long an untouched draft is kept
func WithDraftTTL(ttl time.Duration) DraftOption {
	return func(s *DraftService) { s.drafts = gocache.New(ttl, ttl) }
}

// WithImageProbe replaces the EXIF location fallback. nil disables it.
func WithImageProbe(p ImageProbe) DraftOption {
	return func(s *DraftService) { s.imageProbe = p }
}

// NewDraftService returns a DraftService submitting through submitter and classifying
// with detector
func NewDraftService(submitter Submitter, detector Detector, opts ...DraftOption) *DraftService {
	s := &DraftService{
		submitter:  submitter,
		detector:   detector,
		imageProbe: ExifLocator,
		drafts:     gocache.New(DefaultDraftTTL, DefaultDraftTTL),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts an empty draft owned by the current user
func (s *DraftService) Create(ctx context.Context) (DraftView, error) {
	user, err := session.Require(ctx)
	if err != nil {
		return DraftView{}, &UnauthenticatedError{}
	}
	d := newDraft(uuid.NewString(), user.ID, s.now().UTC())
	s.drafts.SetDefault(d.ID, d)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view(), nil
}

// Get returns the current state of a draft
func (s *DraftService) Get(ctx context.Context, id string) (DraftView, error) {
	d, err := s.owned(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view(), nil
}

// SelectImage attaches a new photo. Results derived from the previous photo are dropped
// at once, and classification of the new one starts in the background. When the draft has
// no device fix, the photo's EXIF block is probed for a location as well.
func (s *DraftService) SelectImage(ctx context.Context, id string, img Image) (DraftView, error) {
	if len(img.Data) == 0 {
		return DraftView{}, &ValidationError{Fields: []string{"image"}}
	}
	d, err := s.owned(ctx, id)
	if err != nil {
		return DraftView{}, err
	}

	d.mu.Lock()
	version := d.resetForImage(&img)
	probe := s.imageProbe != nil && d.location == nil
	if probe {
		d.locating = true
	}
	view := d.view()
	d.mu.Unlock()
	s.touch(d)

	// background work keeps the caller's values but not its cancellation, and has no
	// deadline: the draft shows classifying/locating until the result arrives
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go s.classify(bg, d, version, img.Data)
	if probe {
		s.wg.Add(1)
		go s.probeImage(bg, d, version, img.Data)
	}
	return view, nil
}

func (s *DraftService) classify(ctx context.Context, d *Draft, version int, data []byte) {
	defer s.wg.Done()
	detections, err := s.detector.Detect(ctx, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.imageVersion != version {
		zap.S().Debugw("discarding stale classification", "draft", d.ID, "version", version, "current", d.imageVersion)
		return
	}
	d.classifying = false
	if err != nil {
		var inferErr *classifier.InferenceError
		if !errors.As(err, &inferErr) {
			err = &classifier.InferenceError{Stage: classifier.StageInference, Err: err}
		}
		zap.S().Warnw("classification failed, manual category selection", "draft", d.ID, "error", err)
		d.inferenceErr = err
		return
	}
	d.detections = classifier.FilterTrash(detections)
	d.suggested = classifier.SuggestCategory(detections)
	if d.suggested != nil && d.categorySource != SourceUser {
		c := *d.suggested
		d.category = &c
		d.categorySource = SourceAI
	}
}

func (s *DraftService) probeImage(ctx context.Context, d *Draft, version int, data []byte) {
	defer s.wg.Done()
	loc, err := s.imageProbe(data).Acquire(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.imageVersion != version {
		return
	}
	d.locating = false
	if err != nil {
		zap.S().Debugw("no location in image", "draft", d.ID, "error", err)
		return
	}
	if d.locationSource == SourceDevice {
		return
	}
	d.location = &loc
	d.locationSource = SourceExif
	d.locationErr = nil
}

// SetLocation records the device fix. A failed fix is kept on the draft as its location
// error and returned; a location read from the photo survives it.
func (s *DraftService) SetLocation(ctx context.Context, id string, fix location.ReportedFix) (DraftView, error) {
	d, err := s.owned(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	loc, fixErr := fix.Acquire(ctx)

	d.mu.Lock()
	if fixErr != nil {
		d.locationErr = fixErr
		if d.locationSource == SourceDevice {
			d.location = nil
			d.locationSource = ""
		}
	} else {
		d.location = &loc
		d.locationSource = SourceDevice
		d.locationErr = nil
	}
	view := d.view()
	d.mu.Unlock()
	s.touch(d)
	return view, fixErr
}

// DraftPatch holds the form fields a resident edits. Nil fields are left as they are.
type DraftPatch struct {
	Category    *string
	Description *string
}

// Update validates every field of p and applies them together, or none of them. A
// category chosen here takes precedence over any suggestion; an empty one clears it.
func (s *DraftService) Update(ctx context.Context, id string, p DraftPatch) (DraftView, error) {
	var (
		category *models.Category
		invalid  []string
	)
	if p.Category != nil && strings.TrimSpace(*p.Category) != "" {
		c, ok := models.ParseCategory(*p.Category)
		if ok {
			category = &c
		} else {
			invalid = append(invalid, "category")
		}
	}
	if p.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*p.Description)) > MaxDescriptionLength {
		invalid = append(invalid, "description")
	}
	if len(invalid) > 0 {
		return DraftView{}, &ValidationError{Fields: invalid}
	}
	d, err := s.owned(ctx, id)
	if err != nil {
		return DraftView{}, err
	}

	d.mu.Lock()
	if p.Category != nil {
		d.category = category
		d.categorySource = ""
		if category != nil {
			d.categorySource = SourceUser
		}
	}
	if p.Description != nil {
		d.description = *p.Description
	}
	view := d.view()
	d.mu.Unlock()
	s.touch(d)
	return view, nil
}

// SetCategory records the resident's choice
func (s *DraftService) SetCategory(ctx context.Context, id, raw string) (DraftView, error) {
	return s.Update(ctx, id, DraftPatch{Category: &raw})
}

// SetDescription replaces the free text description
func (s *DraftService) SetDescription(ctx context.Context, id, description string) (DraftView, error) {
	return s.Update(ctx, id, DraftPatch{Description: &description})
}

// Submit files the draft. Only one submission of a draft may run at a time; the draft is
// discarded once the report is stored.
func (s *DraftService) Submit(ctx context.Context, id string) (string, error) {
	d, err := s.owned(ctx, id)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	d.submitting = true
	sub := d.submission()
	d.mu.Unlock()

	reportID, err := s.submitter.Submit(ctx, sub)

	d.mu.Lock()
	d.submitting = false
	d.mu.Unlock()
	if err != nil {
		return "", err
	}
	s.drafts.Delete(id)
	return reportID, nil
}

// Discard drops a draft
func (s *DraftService) Discard(ctx context.Context, id string) error {
	if _, err := s.owned(ctx, id); err != nil {
		return err
	}
	s.drafts.Delete(id)
	return nil
}

// Close waits for background classification and location work to finish
func (s *DraftService) Close() {
	s.wg.Wait()
}

func (s *DraftService) owned(ctx context.Context, id string) (*Draft, error) {
	user, err := session.Require(ctx)
	if err != nil {
		return nil, &UnauthenticatedError{}
	}
	v, ok := s.drafts.Get(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	d := v.(*Draft)
	if d.OwnerID != user.ID {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

// touch extends the draft's expiry
func (s *DraftService) touch(d *Draft) {
	if _, ok := s.drafts.Get(d.ID); ok {
		s.drafts.SetDefault(d.ID, d)
	}
}
