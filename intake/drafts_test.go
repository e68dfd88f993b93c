package intake_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/linesmerrill/lapor-sampah-api/classifier"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/intake/mocks"
	"github.com/linesmerrill/lapor-sampah-api/location"
	"github.com/linesmerrill/lapor-sampah-api/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

// gatedDetector answers by image content; images with a gate block until it is closed
type gatedDetector struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	results map[string][]models.Detection
	errs    map[string]error
}

func newGatedDetector() *gatedDetector {
	return &gatedDetector{
		gates:   map[string]chan struct{}{},
		results: map[string][]models.Detection{},
		errs:    map[string]error{},
	}
}

func (g *gatedDetector) answer(image string, labels ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, l := range labels {
		g.results[image] = append(g.results[image], models.Detection{Label: l, Confidence: 0.9 - float32(i)*0.1})
	}
}

func (g *gatedDetector) fail(image string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[image] = err
}

func (g *gatedDetector) gate(image string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[image] = ch
	return ch
}

func (g *gatedDetector) Detect(ctx context.Context, data []byte) ([]models.Detection, error) {
	g.mu.Lock()
	gate := g.gates[string(data)]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.results[string(data)], g.errs[string(data)]
}

type fixedProbe struct {
	loc models.Location
	err error
}

func (p fixedProbe) Acquire(ctx context.Context) (models.Location, error) { return p.loc, p.err }

// exifByImage serves a location only for images listed in locs
func exifByImage(locs map[string]models.Location, calls *callCounter) intake.ImageProbe {
	return func(image []byte) location.Probe {
		calls.inc()
		if loc, ok := locs[string(image)]; ok {
			return fixedProbe{loc: loc}
		}
		return fixedProbe{err: &location.Error{Source: "exif", Err: location.ErrUnavailable}}
	}
}

type callCounter struct {
	mu sync.Mutex
	n  int
}

func (c *callCounter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *callCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func photo(name string) intake.Image {
	return intake.Image{Name: name + ".jpg", ContentType: "image/jpeg", Data: []byte(name)}
}

func floatPtr(f float64) *float64 { return &f }

func newDrafts(t *testing.T, submitter intake.Submitter, detector intake.Detector, opts ...intake.DraftOption) *intake.DraftService {
	svc := intake.NewDraftService(submitter, detector, opts...)
	t.Cleanup(svc.Close)
	return svc
}

func TestDraftService_Ownership(t *testing.T) {
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(nil))

	_, err := svc.Create(context.Background())
	assert.ErrorIs(t, err, intake.ErrUnauthenticated)

	d, err := svc.Create(userCtx("u-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.ElementsMatch(t, []string{"image", "category", "location"}, d.Missing)
	assert.False(t, d.ReadyToSubmit())

	_, err = svc.Get(userCtx("u-2"), d.ID)
	assert.ErrorIs(t, err, intake.ErrDraftNotFound)
	_, err = svc.Get(userCtx("u-1"), "nope")
	assert.ErrorIs(t, err, intake.ErrDraftNotFound)

	got, err := svc.Get(userCtx("u-1"), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
}

func TestDraftService_SelectImageSuggestsCategory(t *testing.T) {
	det := newGatedDetector()
	det.answer("a", "person", "bottle")
	svc := newDrafts(t, &mocks.Submitter{}, det, intake.WithImageProbe(nil))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)

	view, err := svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	assert.True(t, view.HasImage)
	assert.Equal(t, 1, view.ImageVersion)

	svc.Close()
	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, view.Classifying)
	require.NotNil(t, view.SuggestedCategory)
	assert.Equal(t, models.CategoryPlastic, *view.SuggestedCategory)
	require.NotNil(t, view.Category)
	assert.Equal(t, models.CategoryPlastic, *view.Category)
	assert.Equal(t, intake.SourceAI, view.CategorySource)
	require.Len(t, view.Detections, 1)
	assert.Equal(t, "bottle", view.Detections[0].Label)
}

func TestDraftService_StaleClassificationDiscarded(t *testing.T) {
	det := newGatedDetector()
	det.answer("a", "banana")
	det.answer("b", "cup")
	releaseA := det.gate("a")
	svc := newDrafts(t, &mocks.Submitter{}, det, intake.WithImageProbe(nil))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	view, err := svc.SelectImage(ctx, d.ID, photo("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, view.ImageVersion)
	assert.Nil(t, view.SuggestedCategory, "previous results are cleared immediately")

	close(releaseA)
	svc.Close()

	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, view.SuggestedCategory)
	assert.Equal(t, models.CategoryPlastic, *view.SuggestedCategory)
	require.Len(t, view.Detections, 1)
	assert.Equal(t, "cup", view.Detections[0].Label)
}

func TestDraftService_UserCategoryWins(t *testing.T) {
	det := newGatedDetector()
	det.answer("a", "bottle")
	svc := newDrafts(t, &mocks.Submitter{}, det, intake.WithImageProbe(nil))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SetCategory(ctx, d.ID, "organik")
	require.NoError(t, err)

	_, err = svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	svc.Close()

	view, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOrganic, *view.Category)
	assert.Equal(t, intake.SourceUser, view.CategorySource)
	assert.Equal(t, models.CategoryPlastic, *view.SuggestedCategory)
}

func TestDraftService_ImageChangeClearsAICategory(t *testing.T) {
	det := newGatedDetector()
	det.answer("a", "bottle")
	svc := newDrafts(t, &mocks.Submitter{}, det, intake.WithImageProbe(nil))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	svc.Close()

	view, err := svc.SelectImage(ctx, d.ID, photo("b"))
	require.NoError(t, err)
	assert.Nil(t, view.Category)
	svc.Close()

	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Category, "nothing recognised in the new photo")
	assert.Empty(t, view.Detections)
}

func TestDraftService_InferenceFailureFallsBackToManual(t *testing.T) {
	det := newGatedDetector()
	det.fail("a", &classifier.InferenceError{Stage: classifier.StageLoad, Err: errors.New("no model")})
	svc := newDrafts(t, &mocks.Submitter{}, det, intake.WithImageProbe(nil))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	svc.Close()

	view, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, view.ManualCategory)
	assert.Contains(t, view.InferenceError, "no model")
	assert.Nil(t, view.Category)

	view, err = svc.SetCategory(ctx, d.ID, "B3")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryHazardous, *view.Category)
}

func TestDraftService_ExifLocationFallback(t *testing.T) {
	calls := &callCounter{}
	probe := exifByImage(map[string]models.Location{"a": {Lat: -2.97, Lng: 102.27}}, calls)
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(probe))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	view, err := svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	assert.True(t, view.Locating)
	svc.Close()

	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Location)
	assert.Equal(t, models.Location{Lat: -2.97, Lng: 102.27}, *view.Location)
	assert.Equal(t, intake.SourceExif, view.LocationSource)

	// a photo without GPS tags drops the previous photo's location
	_, err = svc.SelectImage(ctx, d.ID, photo("b"))
	require.NoError(t, err)
	svc.Close()
	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Location)
	assert.Contains(t, view.Missing, "location")
	assert.Equal(t, 2, calls.get())
}

func TestDraftService_DeviceFixSkipsExif(t *testing.T) {
	calls := &callCounter{}
	probe := exifByImage(map[string]models.Location{"a": {Lat: 1, Lng: 1}}, calls)
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(probe))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SetLocation(ctx, d.ID, location.ReportedFix{Lat: floatPtr(-2.97), Lng: floatPtr(102.27)})
	require.NoError(t, err)
	_, err = svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	svc.Close()

	view, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.SourceDevice, view.LocationSource)
	assert.Equal(t, -2.97, view.Location.Lat)
	assert.Equal(t, 0, calls.get())
}

func TestDraftService_SetLocationDenied(t *testing.T) {
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(nil))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	view, err := svc.SetLocation(ctx, d.ID, location.ReportedFix{Reason: "denied"})
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
	assert.Nil(t, view.Location)
	assert.NotEmpty(t, view.LocationError)
	assert.Contains(t, view.Missing, "location")

	view, err = svc.SetLocation(ctx, d.ID, location.ReportedFix{Lat: floatPtr(-2.97), Lng: floatPtr(102.27)})
	require.NoError(t, err)
	assert.Empty(t, view.LocationError)
	assert.NotContains(t, view.Missing, "location")
}

func TestDraftService_FieldValidation(t *testing.T) {
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(nil))
	ctx := userCtx("u-1")
	d, err := svc.Create(ctx)
	require.NoError(t, err)

	var verr *intake.ValidationError
	_, err = svc.SetCategory(ctx, d.ID, "Kaca")
	assert.True(t, errors.As(err, &verr))
	_, err = svc.SetDescription(ctx, d.ID, strings.Repeat("x", 1001))
	assert.True(t, errors.As(err, &verr))
	_, err = svc.SelectImage(ctx, d.ID, intake.Image{Name: "empty.jpg"})
	assert.True(t, errors.As(err, &verr))

	view, err := svc.SetDescription(ctx, d.ID, "dekat pasar")
	require.NoError(t, err)
	assert.Equal(t, "dekat pasar", view.Description)
}

// patientDetector answers only after release is closed, or fails once its context is done
type patientDetector struct {
	release     chan struct{}
	hadDeadline chan bool
}

func (p *patientDetector) Detect(ctx context.Context, data []byte) ([]models.Detection, error) {
	_, ok := ctx.Deadline()
	p.hadDeadline <- ok
	select {
	case <-p.release:
		return []models.Detection{{Label: "banana", Confidence: 0.8}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDraftService_SlowClassificationIsStillApplied(t *testing.T) {
	det := &patientDetector{release: make(chan struct{}), hadDeadline: make(chan bool, 1)}
	svc := newDrafts(t, &mocks.Submitter{}, det, intake.WithImageProbe(nil))
	reqCtx, cancel := context.WithTimeout(userCtx("u-1"), time.Millisecond)
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SelectImage(reqCtx, d.ID, photo("a"))
	require.NoError(t, err)
	cancel()

	assert.False(t, <-det.hadDeadline, "background classification runs without a deadline")
	time.Sleep(20 * time.Millisecond)
	view, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, view.Classifying, "the draft keeps waiting")

	close(det.release)
	svc.Close()
	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, view.Classifying)
	assert.False(t, view.ManualCategory)
	require.NotNil(t, view.SuggestedCategory)
	assert.Equal(t, models.CategoryOrganic, *view.SuggestedCategory)
}

// gatedProbe blocks Acquire until release is closed
type gatedProbe struct {
	release chan struct{}
	loc     models.Location
}

func (p gatedProbe) Acquire(ctx context.Context) (models.Location, error) {
	<-p.release
	return p.loc, nil
}

func TestDraftService_LocatingClearedWhenPhotoIsReplaced(t *testing.T) {
	release := make(chan struct{})
	probe := func(image []byte) location.Probe {
		return gatedProbe{release: release, loc: models.Location{Lat: 1, Lng: 1}}
	}
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(probe))
	ctx := userCtx("u-1")

	d, err := svc.Create(ctx)
	require.NoError(t, err)
	view, err := svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	assert.True(t, view.Locating)

	_, err = svc.SetLocation(ctx, d.ID, location.ReportedFix{Lat: floatPtr(-2.97), Lng: floatPtr(102.27)})
	require.NoError(t, err)
	view, err = svc.SelectImage(ctx, d.ID, photo("b"))
	require.NoError(t, err)
	assert.False(t, view.Locating, "a device fix needs no probe of the new photo")

	close(release)
	svc.Close()
	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, view.Locating)
	assert.Equal(t, intake.SourceDevice, view.LocationSource)
	assert.Equal(t, -2.97, view.Location.Lat)
}

func TestDraftService_UpdateIsAllOrNothing(t *testing.T) {
	svc := newDrafts(t, &mocks.Submitter{}, newGatedDetector(), intake.WithImageProbe(nil))
	ctx := userCtx("u-1")
	d, err := svc.Create(ctx)
	require.NoError(t, err)

	category, tooLong := "Plastik", strings.Repeat("x", 1001)
	_, err = svc.Update(ctx, d.ID, intake.DraftPatch{Category: &category, Description: &tooLong})
	var verr *intake.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"description"}, verr.Fields)

	view, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Category, "no field is applied when another one is invalid")

	bad, desc := "Kaca", "dekat pasar"
	_, err = svc.Update(ctx, d.ID, intake.DraftPatch{Category: &bad, Description: &desc})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"category"}, verr.Fields)
	view, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Description)

	view, err = svc.Update(ctx, d.ID, intake.DraftPatch{Category: &category, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPlastic, *view.Category)
	assert.Equal(t, intake.SourceUser, view.CategorySource)
	assert.Equal(t, "dekat pasar", view.Description)

	view, err = svc.Update(ctx, d.ID, intake.DraftPatch{})
	require.NoError(t, err)
	assert.Equal(t, "dekat pasar", view.Description, "an empty patch changes nothing")
}

func readyDraft(t *testing.T, svc *intake.DraftService, ctx context.Context) string {
	t.Helper()
	d, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SelectImage(ctx, d.ID, photo("a"))
	require.NoError(t, err)
	_, err = svc.SetCategory(ctx, d.ID, "Plastik")
	require.NoError(t, err)
	_, err = svc.SetLocation(ctx, d.ID, location.ReportedFix{Lat: floatPtr(-2.97), Lng: floatPtr(102.27)})
	require.NoError(t, err)
	svc.Close()
	return d.ID
}

func TestDraftService_Submit(t *testing.T) {
	sub := &mocks.Submitter{}
	svc := newDrafts(t, sub, newGatedDetector(), intake.WithImageProbe(nil))
	ctx := userCtx("u-1")
	id := readyDraft(t, svc, ctx)

	sub.On("Submit", mock.Anything, mock.MatchedBy(func(s intake.Submission) bool {
		return s.Category == string(models.CategoryPlastic) &&
			s.Location != nil && s.Location.Lat == -2.97 &&
			s.Image != nil && string(s.Image.Data) == "a"
	})).Return("report-1", nil).Once()

	reportID, err := svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "report-1", reportID)

	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, intake.ErrDraftNotFound, "submitted drafts are discarded")
	sub.AssertExpectations(t)
}

func TestDraftService_SubmitFailureKeepsDraft(t *testing.T) {
	sub := &mocks.Submitter{}
	svc := newDrafts(t, sub, newGatedDetector(), intake.WithImageProbe(nil))
	ctx := userCtx("u-1")
	id := readyDraft(t, svc, ctx)

	sub.On("Submit", mock.Anything, mock.Anything).
		Return("", &intake.StorageError{Key: "k", Err: errors.New("mocked-error")}).Once()

	_, err := svc.Submit(ctx, id)
	var serr *intake.StorageError
	assert.True(t, errors.As(err, &serr))

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, view.Submitting)
}

func TestDraftService_SubmitInFlight(t *testing.T) {
	sub := &mocks.Submitter{}
	svc := newDrafts(t, sub, newGatedDetector(), intake.WithImageProbe(nil))
	ctx := userCtx("u-1")
	id := readyDraft(t, svc, ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	sub.On("Submit", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return("report-1", nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, id)
		done <- err
	}()
	<-started

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Submitting)

	_, err = svc.Submit(ctx, id)
	assert.ErrorIs(t, err, intake.ErrSubmissionInFlight)

	close(release)
	assert.NoError(t, <-done)
	sub.AssertNumberOfCalls(t, "Submit", 1)
}
