// Package intake turns a photo, a location fix and a category into a stored report.
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/metrics"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// MaxDescriptionLength is the longest description accepted, in characters
const MaxDescriptionLength = 1000

// Image is an uploaded photo
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Object is a stored blob
type Object struct {
	Key string
	URL string
}

// ObjectStore holds report photos
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (Object, error)
}

// ReportWriter persists new reports and returns the assigned id
type ReportWriter interface {
	CreateReport(ctx context.Context, r *models.Report) (string, error)
}

// Publisher receives lifecycle events once they are committed
type Publisher interface {
	Publish(ctx context.Context, ev models.ReportEvent)
}

// Submission is the payload of a new report. Category is the raw value chosen by the
// resident and accepts the same aliases as models.ParseCategory.
type Submission struct {
	Image       *Image
	Category    string
	Description string
	Location    *models.Location
}

// Validate returns a *ValidationError naming every field that would block submission
func (s Submission) Validate() error {
	var fields []string
	if s.Image == nil || len(s.Image.Data) == 0 {
		fields = append(fields, "image")
	}
	if _, ok := models.ParseCategory(s.Category); !ok {
		fields = append(fields, "category")
	}
	if s.Location == nil || !s.Location.Valid() {
		fields = append(fields, "location")
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Description)) > MaxDescriptionLength {
		fields = append(fields, "description")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Pipeline validates, uploads and records new reports
type Pipeline struct {
	objects   ObjectStore
	reports   ReportWriter
	publisher Publisher
	folder    string
	now       func() time.Time
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithFolder prefixes every upload key with folder
func WithFolder(folder string) PipelineOption {
	return func(p *Pipeline) { p.folder = folder }
}

// WithPublisher sends report.submitted events to pub
func WithPublisher(pub Publisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline returns a Pipeline storing photos in objects and rows in reports
func NewPipeline(objects ObjectStore, reports ReportWriter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		objects: objects,
		reports: reports,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit stores the photo and inserts a Pending report owned by the current user.
// Nothing is uploaded or written unless the submission is complete. A failed insert
// leaves the uploaded photo in place; it is never retried here.
func (p *Pipeline) Submit(ctx context.Context, s Submission) (string, error) {
	if err := s.Validate(); err != nil {
		metrics.ReportsSubmitted.WithLabelValues("validation").Inc()
		return "", err
	}
	user, err := session.Require(ctx)
	if err != nil {
		metrics.ReportsSubmitted.WithLabelValues("unauthenticated").Inc()
		return "", &UnauthenticatedError{}
	}
	category, _ := models.ParseCategory(s.Category)

	now := p.now().UTC()
	key := p.objectKey(user.ID, now)
	obj, err := p.objects.Upload(ctx, key, s.Image.ContentType, bytes.NewReader(s.Image.Data))
	if err != nil {
		metrics.ReportsSubmitted.WithLabelValues("storage").Inc()
		zap.S().Errorw("image upload failed", "key", key, "submitter", user.ID, "error", err)
		return "", &StorageError{Key: key, Err: err}
	}
	if obj.URL == "" {
		metrics.ReportsSubmitted.WithLabelValues("storage").Inc()
		return "", &StorageError{Key: key, Err: errors.New("object store returned no public url")}
	}
	if obj.Key == "" {
		obj.Key = key
	}

	report := &models.Report{
		SubmitterID: user.ID,
		ImageRef:    obj.URL,
		ImageKey:    obj.Key,
		Category:    category,
		Description: strings.TrimSpace(s.Description),
		Location:    *s.Location,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := p.reports.CreateReport(ctx, report)
	if err != nil {
		metrics.ReportsSubmitted.WithLabelValues("persistence").Inc()
		zap.S().Errorw("report insert failed, image left for sweeper",
			"key", obj.Key,
			"submitter", user.ID,
			"error", err,
		)
		return "", &PersistenceError{ImageRef: obj.URL, Err: fmt.Errorf("failed to insert report: %w", err)}
	}
	report.ID = id

	metrics.ReportsSubmitted.WithLabelValues("ok").Inc()
	zap.S().Infow("report submitted", "report", id, "submitter", user.ID, "category", category)
	if p.publisher != nil {
		p.publisher.Publish(ctx, models.ReportEvent{
			Type:    models.EventReportSubmitted,
			Report:  *report,
			ActorID: user.ID,
			At:      now,
		})
	}
	return id, nil
}

// objectKey is <folder>/<submitter>/<unix nanos>-<random>
func (p *Pipeline) objectKey(submitterID string, now time.Time) string {
	name := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])
	return path.Join(p.folder, submitterID, name)
}
