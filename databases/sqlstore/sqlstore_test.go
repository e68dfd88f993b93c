package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lapor-sampah-api/databases/sqlstore"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/moderation"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func asUser(id string) context.Context {
	return session.WithUser(context.Background(), session.User{ID: id})
}

func seedReport(t *testing.T, s *sqlstore.Store, id, submitter string, status models.Status, created time.Time) {
	t.Helper()
	_, err := s.CreateReport(context.Background(), &models.Report{
		ID:          id,
		SubmitterID: submitter,
		ImageRef:    "https://cdn/" + id + ".jpg",
		ImageKey:    "reports/" + submitter + "/" + id,
		Category:    models.CategoryOrganic,
		Location:    models.Location{Lat: -2.97, Lng: 102.27},
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	})
	require.NoError(t, err)
}

func TestStore_ConcurrentVerifyAwardsOnce(t *testing.T) {
	s := newTestStore(t)
	seedReport(t, s, "r-1", "u-1", models.StatusPending, time.Now().UTC())
	engine := moderation.NewEngine(s)

	const moderators = 16
	var wg sync.WaitGroup
	errs := make(chan error, moderators)
	for i := 0; i < moderators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Verify(asUser(fmt.Sprintf("admin-%d", i)), "r-1")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	r, err := s.GetReport(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, r.Status)

	p, err := s.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, moderation.RewardPoints, p.Points)

	var awards int64
	require.NoError(t, s.DB.Model(&models.PointAward{}).Where("report_id = ?", "r-1").Count(&awards).Error)
	assert.Equal(t, int64(1), awards)
}

func TestStore_ConcurrentFirstCreditsForSameUser(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	seedReport(t, s, "r-1", "u-new", models.StatusPending, now)
	seedReport(t, s, "r-2", "u-new", models.StatusPending, now)
	engine := moderation.NewEngine(s)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"r-1", "r-2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := engine.Verify(asUser("admin-1"), id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	p, err := s.GetProfile(context.Background(), "u-new")
	require.NoError(t, err)
	assert.Equal(t, 2*moderation.RewardPoints, p.Points)
	assert.Equal(t, models.RoleUser, p.Role)
}

func TestStore_TransitionConflictWritesNothing(t *testing.T) {
	s := newTestStore(t)
	seedReport(t, s, "r-1", "u-1", models.StatusVerified, time.Now().UTC())

	_, err := s.Transition(context.Background(), moderation.TransitionRequest{
		ReportID: "r-1",
		From:     models.StatusPending,
		To:       models.StatusVerified,
		At:       time.Now().UTC(),
		Award:    &models.PointAward{ReportID: "r-1", UserID: "u-1", Points: 10},
	})
	assert.ErrorIs(t, err, moderation.ErrStatusConflict)

	_, err = s.GetProfile(context.Background(), "u-1")
	assert.ErrorIs(t, err, session.ErrProfileNotFound, "no credit without the status flip")

	_, err = s.Transition(context.Background(), moderation.TransitionRequest{ReportID: "nope", From: models.StatusPending, To: models.StatusVerified})
	assert.ErrorIs(t, err, moderation.ErrReportNotFound)
}

func TestStore_DuplicateAwardRollsBackFlip(t *testing.T) {
	s := newTestStore(t)
	seedReport(t, s, "r-1", "u-1", models.StatusPending, time.Now().UTC())
	require.NoError(t, s.DB.Create(&models.PointAward{ReportID: "r-1", UserID: "u-1", Points: 10}).Error)

	_, err := s.Transition(context.Background(), moderation.TransitionRequest{
		ReportID: "r-1",
		From:     models.StatusPending,
		To:       models.StatusVerified,
		At:       time.Now().UTC(),
		Award:    &models.PointAward{ReportID: "r-1", UserID: "u-1", Points: 10},
	})
	assert.ErrorIs(t, err, moderation.ErrStatusConflict)

	r, err := s.GetReport(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status, "status flip rolled back with the award")
}

func TestStore_CreditAddsToExistingBalance(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveProfile(context.Background(), &models.Profile{ID: "u-1", FullName: "Sari Dewi", Points: 30, Role: models.RoleUser}))
	seedReport(t, s, "r-1", "u-1", models.StatusPending, time.Now().UTC())

	_, err := moderation.NewEngine(s).Verify(asUser("admin-1"), "r-1")
	require.NoError(t, err)

	p, err := s.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), p.Points)
	assert.Equal(t, "Sari Dewi", p.FullName)
}

func TestStore_ListingJoinAndDegradedMode(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveProfile(context.Background(), &models.Profile{ID: "u-1", FullName: "Sari Dewi", Username: "sari"}))
	seedReport(t, s, "r-1", "u-1", models.StatusPending, base)
	seedReport(t, s, "r-2", "u-2", models.StatusVerified, base.Add(time.Hour))
	seedReport(t, s, "r-3", "u-1", models.StatusPending, base.Add(2*time.Hour))
	engine := moderation.NewEngine(s)

	listing, err := engine.ListReports(asUser("admin-1"), models.ReportFilter{})
	require.NoError(t, err)
	assert.False(t, listing.Limited)
	require.Len(t, listing.Reports, 3)
	assert.Equal(t, "r-3", listing.Reports[0].ID, "newest first")
	require.NotNil(t, listing.Reports[0].Submitter)
	assert.Equal(t, "Sari Dewi", listing.Reports[0].Submitter.FullName)
	assert.Equal(t, "sari", listing.Reports[0].Submitter.Username)
	assert.Nil(t, listing.Reports[1].Submitter, "submitter without profile")
	assert.Equal(t, models.Location{Lat: -2.97, Lng: 102.27}, listing.Reports[2].Location)

	pending, err := engine.ListReports(asUser("admin-1"), models.ReportFilter{Status: models.StatusPending, Limit: 1, Page: 2})
	require.NoError(t, err)
	require.Len(t, pending.Reports, 1)
	assert.Equal(t, "r-1", pending.Reports[0].ID)

	require.NoError(t, s.DB.Migrator().DropTable(&models.Profile{}))

	degraded, err := engine.ListReports(asUser("admin-1"), models.ReportFilter{})
	require.NoError(t, err)
	assert.True(t, degraded.Limited)
	assert.NotEmpty(t, degraded.Warning)
	require.Len(t, degraded.Reports, 3)
	for _, r := range degraded.Reports {
		assert.Nil(t, r.Submitter)
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	seedReport(t, s, "r-1", "u-1", models.StatusPending, now)
	seedReport(t, s, "r-2", "u-2", models.StatusVerified, now)
	seedReport(t, s, "r-3", "u-1", models.StatusResolved, now)

	stats, err := moderation.NewEngine(s).Stats(asUser("u-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ReportStats{Total: 3, Pending: 1, Verified: 1, Resolved: 1, Mine: 2}, stats)
}

func TestStore_ImageKeyReferenced(t *testing.T) {
	s := newTestStore(t)
	seedReport(t, s, "r-1", "u-1", models.StatusPending, time.Now().UTC())

	ok, err := s.ImageKeyReferenced(context.Background(), "reports/u-1/r-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ImageKeyReferenced(context.Background(), "reports/u-1/orphan")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SchedulerLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.TryAcquireLock(ctx, "orphan_sweep", "web.1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquireLock(ctx, "orphan_sweep", "web.2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TryAcquireLock(ctx, "orphan_sweep", "web.1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "owner may renew")

	require.NoError(t, s.ReleaseLock(ctx, "orphan_sweep", "web.1"))
	ok, err = s.TryAcquireLock(ctx, "orphan_sweep", "web.2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// expired leases can be taken over
	ok, err = s.TryAcquireLock(ctx, "expired_job", "web.1", -time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.TryAcquireLock(ctx, "expired_job", "web.2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := sqlstore.Open("postgres", "")
	assert.Error(t, err)
}

// memoryObjects is an object store keeping blobs in memory
type memoryObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memoryObjects) Upload(ctx context.Context, key, contentType string, body io.Reader) (intake.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return intake.Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[key] = data
	return intake.Object{Key: key, URL: "https://cdn.example/" + key}, nil
}

func TestReportLifecycle(t *testing.T) {
	s := newTestStore(t)
	objects := &memoryObjects{}
	pipeline := intake.NewPipeline(objects, s, intake.WithFolder("reports"))
	engine := moderation.NewEngine(s)
	resident := asUser("u-1")
	admin := asUser("admin-1")

	id, err := pipeline.Submit(resident, intake.Submission{
		Image:    &intake.Image{Name: "dump.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		Category: "Plastik",
		Location: &models.Location{Lat: -2.97, Lng: 102.27},
	})
	require.NoError(t, err)

	r, err := s.GetReport(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, models.CategoryPlastic, r.Category)
	assert.Equal(t, "u-1", r.SubmitterID)
	assert.Len(t, objects.blobs, 1)

	r, err = engine.Verify(admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, r.Status)
	assert.Equal(t, "admin-1", r.VerifiedBy)
	p, err := s.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Points)

	// verifying again changes nothing
	_, err = engine.Verify(admin, id)
	require.NoError(t, err)
	p, err = s.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Points)

	r, err = engine.Resolve(admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, r.Status)

	_, err = engine.Transition(admin, id, models.StatusPending)
	var ierr *moderation.IllegalTransitionError
	assert.True(t, errors.As(err, &ierr))

	require.NoError(t, engine.Delete(admin, id))
	listing, err := engine.ListReports(admin, models.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, listing.Reports)

	p, err = s.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Points, "deletion keeps credited points")
}
