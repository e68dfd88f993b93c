// Package sqlstore is the report store on a relational database through gorm. SQLite is
// used for single-node deployments and tests, MySQL for shared deployments.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/moderation"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// Supported drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store implements the report, profile and scheduler lock persistence on gorm
type Store struct {
	DB *gorm.DB
}

func createGormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(zap.L()),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Open connects to the database and migrates the schema
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         createGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single connection serializes writers and keeps :memory: databases alive
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{DB: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	zap.S().Infow("sql store ready", "driver", driver)
	return s, nil
}

// Migrate creates or updates the tables
func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(&models.Report{}, &models.Profile{}, &models.PointAward{}, &models.SchedulerLock{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateReport inserts r and returns its id
func (s *Store) CreateReport(ctx context.Context, r *models.Report) (string, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		return "", err
	}
	return r.ID, nil
}

// GetReport returns the report with the given id
func (s *Store) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, moderation.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return &r, nil
}

// Transition flips the status only if it still equals req.From. With an award, the ledger
// row and the points increment are written in the same transaction.
func (s *Store) Transition(ctx context.Context, req moderation.TransitionRequest) (*models.Report, error) {
	var updated models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Report{}).
			Where("id = ? AND status = ?", req.ReportID, req.From).
			Updates(transitionColumns(req))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Report{}).Where("id = ?", req.ReportID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return moderation.ErrReportNotFound
			}
			return moderation.ErrStatusConflict
		}

		if req.Award != nil {
			if err := tx.Create(req.Award).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return moderation.ErrStatusConflict
				}
				return fmt.Errorf("failed to record award: %w", err)
			}
			if err := creditPoints(tx, req.Award.UserID, req.Award.Points); err != nil {
				return fmt.Errorf("failed to credit points: %w", err)
			}
		}
		return tx.First(&updated, "id = ?", req.ReportID).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// creditPoints adds to the balance in one upsert, creating the profile on first credit
func creditPoints(tx *gorm.DB, userID string, points int64) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"points": gorm.Expr("points + ?", points)}),
	}).Create(&models.Profile{ID: userID, Points: points, Role: models.RoleUser}).Error
}

func transitionColumns(req moderation.TransitionRequest) map[string]interface{} {
	cols := map[string]interface{}{"status": req.To, "updated_at": req.At}
	switch req.To {
	case models.StatusVerified:
		cols["verified_at"] = req.At
		cols["verified_by"] = req.ActorID
	case models.StatusResolved:
		cols["resolved_at"] = req.At
		cols["resolved_by"] = req.ActorID
	}
	return cols
}

// DeleteReport removes the report and returns it. Awards and points are left untouched.
func (s *Store) DeleteReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Report{}, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, moderation.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	return &r, nil
}

type joinedRow struct {
	models.Report     `gorm:"embedded"`
	SubmitterFullName *string
	SubmitterUsername *string
}

// ListReports joins reports with the submitter's profile, newest first
func (s *Store) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.ReportWithSubmitter, error) {
	var rows []joinedRow
	q := s.DB.WithContext(ctx).
		Table("reports").
		Select("reports.*, profiles.full_name AS submitter_full_name, profiles.username AS submitter_username").
		Joins("LEFT JOIN profiles ON profiles.id = reports.submitter_id")
	q = paginate(where(q, filter, "reports."), filter).Order("reports.created_at DESC")
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports with submitters: %w", err)
	}

	out := make([]models.ReportWithSubmitter, len(rows))
	for i, row := range rows {
		out[i] = models.ReportWithSubmitter{Report: row.Report}
		if row.SubmitterFullName != nil {
			sub := &models.Submitter{FullName: *row.SubmitterFullName}
			if row.SubmitterUsername != nil {
				sub.Username = *row.SubmitterUsername
			}
			out[i].Submitter = sub
		}
	}
	return out, nil
}

// ListReportsPlain reads reports without the profile join, newest first
func (s *Store) ListReportsPlain(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	var reports []models.Report
	q := paginate(where(s.DB.WithContext(ctx).Model(&models.Report{}), filter, ""), filter).Order("created_at DESC")
	if err := q.Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// CountReports counts the reports matching filter, ignoring pagination
func (s *Store) CountReports(ctx context.Context, filter models.ReportFilter) (int64, error) {
	var n int64
	err := where(s.DB.WithContext(ctx).Model(&models.Report{}), filter, "").Count(&n).Error
	return n, err
}

// ImageKeyReferenced reports whether any report still points at the stored object key
func (s *Store) ImageKeyReferenced(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Report{}).Where("image_key = ?", key).Count(&n).Error
	return n > 0, err
}

// GetProfile returns the profile of a user
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return &p, nil
}

// SaveProfile creates or replaces a profile
func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	return s.DB.WithContext(ctx).Save(p).Error
}

func where(q *gorm.DB, f models.ReportFilter, prefix string) *gorm.DB {
	if f.Status != "" {
		q = q.Where(prefix+"status = ?", f.Status)
	}
	if f.SubmitterID != "" {
		q = q.Where(prefix+"submitter_id = ?", f.SubmitterID)
	}
	return q
}

func paginate(q *gorm.DB, f models.ReportFilter) *gorm.DB {
	if f.Limit <= 0 {
		return q
	}
	page := max(f.Page, 1)
	return q.Limit(f.Limit).Offset((page - 1) * f.Limit)
}
