package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

var (
	// ErrReportNotFound is returned for an unknown report id
	ErrReportNotFound = errors.New("report not found")
	// ErrStatusConflict is returned by Store.Transition when the report was not in the
	// expected status, or its award already exists. Nothing was written.
	ErrStatusConflict = errors.New("report status changed concurrently")
)

// TransitionRequest moves one report from From to To. When Award is set, the award row
// is inserted and the submitter's balance is incremented in the same atomic unit.
type TransitionRequest struct {
	ReportID string
	From     models.Status
	To       models.Status
	ActorID  string
	At       time.Time
	Award    *models.PointAward
}

// Store is the persistence the engine runs on
type Store interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
	// Transition applies the change only if the stored status still equals From
	// and returns the updated report
	Transition(ctx context.Context, req TransitionRequest) (*models.Report, error)
	// DeleteReport removes the report and returns it as it was
	DeleteReport(ctx context.Context, id string) (*models.Report, error)
	// ListReports reads reports joined with their submitter's profile
	ListReports(ctx context.Context, filter models.ReportFilter) ([]models.ReportWithSubmitter, error)
	// ListReportsPlain reads reports without touching profiles
	ListReportsPlain(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	CountReports(ctx context.Context, filter models.ReportFilter) (int64, error)
}

// Publisher receives lifecycle events once they are committed
type Publisher interface {
	Publish(ctx context.Context, ev models.ReportEvent)
}
