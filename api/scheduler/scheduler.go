// Package scheduler runs the periodic background jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/storage"
)

// OrphanSweepJob is the lock name of the orphan photo sweep
const OrphanSweepJob = "orphan_sweep"

// Defaults for the orphan sweep
const (
	DefaultSchedule = "30 3 * * *"
	DefaultGrace    = 24 * time.Hour
	lockTTL         = 30 * time.Minute
	runTimeout      = 20 * time.Minute
)

// ObjectStore lists and removes stored photos
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Store answers whether a photo is still in use and hands out job leases
type Store interface {
	ImageKeyReferenced(ctx context.Context, key string) (bool, error)
	TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
	Skipped bool
}

// Options tune the scheduler
type Options struct {
	// Folder is the key prefix photos are uploaded under
	Folder string
	// Schedule is the cron spec of the orphan sweep
	Schedule string
	// Grace is how old an unreferenced photo must be before it is deleted. Younger
	// photos may belong to a submission that is still being written.
	Grace time.Duration
	Now   func() time.Time
	Log   *zap.SugaredLogger
}

// Scheduler handles periodic background jobs. Jobs take a lease first so only one
// instance runs them at a time.
type Scheduler struct {
	cron       *cron.Cron
	objects    ObjectStore
	store      Store
	opts       Options
	log        *zap.SugaredLogger
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(objects ObjectStore, store Store, opts Options) *Scheduler {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = zap.S()
	}

	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		host, _ := os.Hostname()
		instanceID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		objects:    objects,
		store:      store,
		opts:       opts,
		log:        log,
		instanceID: instanceID,
	}
}

// Start registers the jobs and begins the scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.opts.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.SweepOrphans(ctx); err != nil {
			s.log.Errorw("orphan sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register orphan sweep job: %w", err)
	}
	s.cron.Start()
	s.log.Infow("scheduler started", "instance", s.instanceID, "orphanSweep", s.opts.Schedule)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// SweepOrphans deletes stored photos no report points at, such as uploads whose report
// insert failed or photos of deleted reports. Photos younger than the grace period are kept.
func (s *Scheduler) SweepOrphans(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	acquired, err := s.store.TryAcquireLock(ctx, OrphanSweepJob, s.instanceID, lockTTL)
	if err != nil {
		return res, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		s.log.Debug("orphan sweep already running on another instance, skipping")
		res.Skipped = true
		return res, nil
	}
	defer func() {
		if err := s.store.ReleaseLock(context.WithoutCancel(ctx), OrphanSweepJob, s.instanceID); err != nil {
			s.log.Warnw("failed to release orphan sweep lock", "error", err)
		}
	}()

	prefix := strings.TrimSuffix(s.opts.Folder, "/")
	if prefix != "" {
		prefix += "/"
	}
	objects, err := s.objects.List(ctx, prefix)
	if err != nil {
		return res, fmt.Errorf("failed to list stored photos: %w", err)
	}

	cutoff := s.opts.Now().Add(-s.opts.Grace)
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		if obj.CreatedAt.After(cutoff) {
			continue
		}
		used, err := s.store.ImageKeyReferenced(ctx, obj.Key)
		if err != nil {
			return res, fmt.Errorf("failed to check %s: %w", obj.Key, err)
		}
		if used {
			continue
		}
		if err := s.objects.Delete(ctx, obj.Key); err != nil {
			res.Failed++
			s.log.Warnw("failed to delete orphaned photo", "key", obj.Key, "error", err)
			continue
		}
		res.Deleted++
	}

	s.log.Infow("orphan sweep finished",
		"instance", s.instanceID,
		"scanned", res.Scanned,
		"deleted", res.Deleted,
		"failed", res.Failed,
	)
	return res, nil
}
