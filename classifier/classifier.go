// Package classifier detects waste objects in report photos and suggests a category.
//
// The detector is loaded lazily on first use and kept for the lifetime of the process.
// Classification is advisory: every failure surfaces as an *InferenceError so the caller
// can fall back to manual category selection.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/linesmerrill/lapor-sampah-api/metrics"
	"github.com/linesmerrill/lapor-sampah-api/models"
)

// Model is a loaded object detector
type Model interface {
	Detect(img image.Image) ([]models.Detection, error)
	Close()
}

// Loader builds the Model. It is called at most once per successful load.
type Loader func(ctx context.Context) (Model, error)

// Stages at which classification can fail
const (
	StageLoad      = "load"
	StageDecode    = "decode"
	StageInference = "inference"
)

// InferenceError is returned for any classification failure. It is never fatal to intake.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("classification failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ErrClosed is returned once the Service has been closed
var ErrClosed = errors.New("classifier closed")

// Default tuning values
const (
	DefaultThreshold  = 0.5
	DefaultMaxResults = 10
	DefaultCacheTTL   = 30 * time.Minute
)

// Service owns the detector lifecycle
type Service struct {
	load       Loader
	threshold  float32
	maxResults int

	group singleflight.Group
	mu     sync.RWMutex
	model  Model
	closed bool

	// the interpreter is single-threaded
	runMu sync.Mutex

	cache *gocache.Cache
}

// Option configures a Service
type Option func(*Service)

// WithThreshold drops detections scoring below t
func WithThreshold(t float32) Option {
	return func(s *Service) { s.threshold = t }
}

// WithMaxResults caps the number of detections returned
func WithMaxResults(n int) Option {
	return func(s *Service) { s.maxResults = n }
}

// WithCacheTTL sets how long results are remembered per image; 0 disables the cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = gocache.New(ttl, 2*ttl)
	}
}

// NewService returns a Service that will call load on first use
func NewService(load Loader, opts ...Option) *Service {
	s := &Service{
		load:       load,
		threshold:  DefaultThreshold,
		maxResults: DefaultMaxResults,
		cache:      gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) loaded() Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Load initializes the detector if it is not loaded yet. Concurrent callers share the
// same in-flight load. A failed load is not remembered; the next call tries again.
func (s *Service) Load(ctx context.Context) error {
	s.mu.RLock()
	m, closed := s.model, s.closed
	s.mu.RUnlock()
	if closed {
		return &InferenceError{Stage: StageLoad, Err: ErrClosed}
	}
	if m != nil {
		return nil
	}

	// the shared load must outlive the caller that happened to start it
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("model", func() (interface{}, error) {
		if m := s.loaded(); m != nil {
			return m, nil
		}
		m, err := s.load(loadCtx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, errors.New("loader returned no model")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			m.Close()
			return nil, ErrClosed
		}
		s.model = m
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.InferenceFailures.WithLabelValues(StageLoad).Inc()
			return &InferenceError{Stage: StageLoad, Err: res.Err}
		}
		return nil
	case <-ctx.Done():
		return &InferenceError{Stage: StageLoad, Err: ctx.Err()}
	}
}

// Detect returns the objects found in the image, highest confidence first
func (s *Service) Detect(ctx context.Context, data []byte) ([]models.Detection, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return cloneDetections(v.([]models.Detection)), nil
		}
	}

	img, err := DecodeImage(data)
	if err != nil {
		metrics.InferenceFailures.WithLabelValues(StageDecode).Inc()
		return nil, &InferenceError{Stage: StageDecode, Err: err}
	}

	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	s.runMu.Lock()
	model := s.loaded()
	if model == nil {
		s.runMu.Unlock()
		return nil, &InferenceError{Stage: StageLoad, Err: ErrClosed}
	}
	detections, err := model.Detect(img)
	s.runMu.Unlock()
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceFailures.WithLabelValues(StageInference).Inc()
		return nil, &InferenceError{Stage: StageInference, Err: err}
	}

	detections = s.rank(detections)
	if s.cache != nil {
		s.cache.SetDefault(key, cloneDetections(detections))
	}
	return detections, nil
}

// Close waits for a running inference, releases the detector and makes every later
// Load and Detect fail with ErrClosed
func (s *Service) Close() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	m := s.model
	s.model = nil
	s.closed = true
	s.mu.Unlock()

	if m != nil {
		m.Close()
	}
}

func (s *Service) rank(detections []models.Detection) []models.Detection {
	out := make([]models.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= s.threshold {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if s.maxResults > 0 && len(out) > s.maxResults {
		out = out[:s.maxResults]
	}
	return out
}

func cloneDetections(d []models.Detection) []models.Detection {
	return append([]models.Detection(nil), d...)
}
