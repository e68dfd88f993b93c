// Package moderation advances reports through Pending, Verified and Resolved and credits
// submitters when their report is verified.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/lapor-sampah-api/metrics"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// RewardPoints is credited to the submitter when a report is verified
const RewardPoints int64 = 10

// Listing page sizes
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// LimitedModeWarning is attached to listings served without submitter details
const LimitedModeWarning = "submitter details are unavailable, showing reports in limited mode"

var (
	// ErrUnauthenticated is returned when the caller has no identity
	ErrUnauthenticated = session.ErrAnonymous
	// ErrUnknownStatus is returned by Transition for a status outside the lifecycle
	ErrUnknownStatus = errors.New("unknown report status")
)

// IllegalTransitionError is returned for a status change the lifecycle does not allow
type IllegalTransitionError struct {
	ReportID string
	From     models.Status
	To       models.Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("report %s cannot move from %s to %s", e.ReportID, e.From, e.To)
}

// Listing is one page of the moderator listing. Limited is set when the submitter join
// failed and the plain rows were served instead.
type Listing struct {
	Reports []models.ReportWithSubmitter `json:"reports"`
	Limited bool                         `json:"limited"`
	Warning string                       `json:"warning,omitempty"`
}

// Engine runs the report lifecycle. It does not check roles; the caller is expected to
// have gated access already.
type Engine struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithPublisher sends committed lifecycle events to pub
func WithPublisher(pub Publisher) Option {
	return func(e *Engine) { e.publisher = pub }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine backed by store
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify moves a Pending report to Verified and credits RewardPoints to its submitter.
// Verifying an already Verified report returns it unchanged and credits nothing.
func (e *Engine) Verify(ctx context.Context, id string) (*models.Report, error) {
	user, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	r, err := e.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case models.StatusVerified:
		return r, nil
	case models.StatusPending:
	default:
		return nil, &IllegalTransitionError{ReportID: id, From: r.Status, To: models.StatusVerified}
	}

	now := e.now().UTC()
	updated, err := e.store.Transition(ctx, TransitionRequest{
		ReportID: id,
		From:     models.StatusPending,
		To:       models.StatusVerified,
		ActorID:  user.ID,
		At:       now,
		Award: &models.PointAward{
			ReportID:  id,
			UserID:    r.SubmitterID,
			Points:    RewardPoints,
			AwardedBy: user.ID,
			AwardedAt: now,
		},
	})
	if errors.Is(err, ErrStatusConflict) {
		return e.settle(ctx, id, models.StatusVerified)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify report %s: %w", id, err)
	}

	metrics.StatusTransitions.WithLabelValues(string(models.StatusVerified)).Inc()
	metrics.PointsAwarded.Add(float64(RewardPoints))
	zap.S().Infow("report verified",
		"report", id,
		"moderator", user.ID,
		"submitter", r.SubmitterID,
		"points", RewardPoints,
	)
	e.publish(ctx, models.EventReportVerified, updated, user.ID, RewardPoints)
	return updated, nil
}

// Resolve moves a Verified report to Resolved. Resolving an already Resolved report
// returns it unchanged.
func (e *Engine) Resolve(ctx context.Context, id string) (*models.Report, error) {
	user, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	r, err := e.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case models.StatusResolved:
		return r, nil
	case models.StatusVerified:
	default:
		return nil, &IllegalTransitionError{ReportID: id, From: r.Status, To: models.StatusResolved}
	}

	updated, err := e.store.Transition(ctx, TransitionRequest{
		ReportID: id,
		From:     models.StatusVerified,
		To:       models.StatusResolved,
		ActorID:  user.ID,
		At:       e.now().UTC(),
	})
	if errors.Is(err, ErrStatusConflict) {
		return e.settle(ctx, id, models.StatusResolved)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve report %s: %w", id, err)
	}

	metrics.StatusTransitions.WithLabelValues(string(models.StatusResolved)).Inc()
	zap.S().Infow("report resolved", "report", id, "moderator", user.ID)
	e.publish(ctx, models.EventReportResolved, updated, user.ID, 0)
	return updated, nil
}

// settle re-reads a report after a lost conditional update. If a concurrent moderator
// already moved it to the wanted status the call succeeds without side effects.
func (e *Engine) settle(ctx context.Context, id string, want models.Status) (*models.Report, error) {
	current, err := e.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == want {
		zap.S().Infow("concurrent transition already applied", "report", id, "status", want)
		return current, nil
	}
	return nil, &IllegalTransitionError{ReportID: id, From: current.Status, To: want}
}

// Transition is the generic entry point for status changes requested out of band. Only
// moves the lifecycle allows are dispatched; everything else is an *IllegalTransitionError.
func (e *Engine) Transition(ctx context.Context, id string, to models.Status) (*models.Report, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	switch to {
	case models.StatusVerified:
		return e.Verify(ctx, id)
	case models.StatusResolved:
		return e.Resolve(ctx, id)
	case models.StatusPending:
		r, err := e.store.GetReport(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &IllegalTransitionError{ReportID: id, From: r.Status, To: to}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
}

// Delete removes a report in any status. Points already credited are kept.
func (e *Engine) Delete(ctx context.Context, id string) error {
	user, err := session.Require(ctx)
	if err != nil {
		return err
	}
	r, err := e.store.DeleteReport(ctx, id)
	if err != nil {
		return err
	}
	zap.S().Infow("report deleted", "report", id, "moderator", user.ID, "status", r.Status)
	e.publish(ctx, models.EventReportDeleted, r, user.ID, 0)
	return nil
}

// ListReports returns reports newest first, joined with submitter names. If the join
// fails the plain rows are returned with Limited set.
func (e *Engine) ListReports(ctx context.Context, filter models.ReportFilter) (Listing, error) {
	if _, err := session.Require(ctx); err != nil {
		return Listing{}, err
	}
	filter = normalize(filter)

	joined, err := e.store.ListReports(ctx, filter)
	if err == nil {
		return Listing{Reports: joined}, nil
	}
	if ctx.Err() != nil {
		return Listing{}, ctx.Err()
	}
	zap.S().Warnw("joined report listing failed, falling back to limited mode", "error", err)
	metrics.DegradedListings.Inc()

	plain, err := e.store.ListReportsPlain(ctx, filter)
	if err != nil {
		return Listing{}, fmt.Errorf("failed to list reports: %w", err)
	}
	rows := make([]models.ReportWithSubmitter, len(plain))
	for i := range plain {
		rows[i] = models.ReportWithSubmitter{Report: plain[i]}
	}
	return Listing{Reports: rows, Limited: true, Warning: LimitedModeWarning}, nil
}

// MyReports returns the caller's own reports, newest first
func (e *Engine) MyReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	user, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter = normalize(filter)
	filter.SubmitterID = user.ID
	reports, err := e.store.ListReportsPlain(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports of %s: %w", user.ID, err)
	}
	return reports, nil
}

// Stats counts reports by status, plus the caller's own
func (e *Engine) Stats(ctx context.Context) (models.ReportStats, error) {
	user, err := session.Require(ctx)
	if err != nil {
		return models.ReportStats{}, err
	}

	var stats models.ReportStats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, filter models.ReportFilter) {
		g.Go(func() error {
			n, err := e.store.CountReports(gctx, filter)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(&stats.Total, models.ReportFilter{})
	count(&stats.Pending, models.ReportFilter{Status: models.StatusPending})
	count(&stats.Verified, models.ReportFilter{Status: models.StatusVerified})
	count(&stats.Resolved, models.ReportFilter{Status: models.StatusResolved})
	count(&stats.Mine, models.ReportFilter{SubmitterID: user.ID})

	if err := g.Wait(); err != nil {
		return models.ReportStats{}, fmt.Errorf("failed to count reports: %w", err)
	}
	return stats, nil
}

func (e *Engine) publish(ctx context.Context, t models.EventType, r *models.Report, actor string, points int64) {
	if e.publisher == nil || r == nil {
		return
	}
	e.publisher.Publish(ctx, models.ReportEvent{
		Type:    t,
		Report:  *r,
		ActorID: actor,
		Points:  points,
		At:      e.now().UTC(),
	})
}

func normalize(f models.ReportFilter) models.ReportFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return f
}
