package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/api"
	"github.com/linesmerrill/lapor-sampah-api/api/scheduler"
	"github.com/linesmerrill/lapor-sampah-api/classifier"
	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/databases"
	"github.com/linesmerrill/lapor-sampah-api/databases/sqlstore"
	"github.com/linesmerrill/lapor-sampah-api/intake"
	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/moderation"
	"github.com/linesmerrill/lapor-sampah-api/notify"
	"github.com/linesmerrill/lapor-sampah-api/session"
	"github.com/linesmerrill/lapor-sampah-api/storage"
)

// ReportStore is everything the service persists: reports, profiles and job leases
type ReportStore interface {
	moderation.Store
	intake.ReportWriter
	api.ProfileReader
	scheduler.Store
}

// App stores the router and the lifecycle services, so they can be reused
type App struct {
	Router *mux.Router
	Config config.Config

	Store     ReportStore
	Objects   *storage.Cloudinary
	Pipeline  *intake.Pipeline
	Engine    *moderation.Engine
	Drafts    *intake.DraftService
	Detector  intake.Detector
	Hub       *NotificationHub
	Auth      *api.Middleware
	Scheduler *scheduler.Scheduler

	closers []func()
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	report := Report{Pipeline: a.Pipeline, Engine: a.Engine}
	draft := Draft{Drafts: a.Drafts}
	classify := Classify{Detector: a.Detector}
	profile := Profile{DB: a.Store}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	anyUser := a.gate(session.AnyUser)
	resident := a.gate(session.ResidentOnly)
	admin := a.gate(session.AdminOnly)

	// the websocket route must not sit behind the timeout handler, which cannot hijack
	r.Handle("/api/v1/ws/reports", admin(http.HandlerFunc(a.Hub.HandleReportsWebSocket))).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	apiCreate.Handle("/reports", resident(http.HandlerFunc(report.CreateReportHandler))).Methods("POST")
	apiCreate.Handle("/reports", admin(http.HandlerFunc(report.ReportsHandler))).Methods("GET")
	apiCreate.Handle("/reports/mine", resident(http.HandlerFunc(report.MyReportsHandler))).Methods("GET")
	apiCreate.Handle("/reports/stats", anyUser(http.HandlerFunc(report.StatsHandler))).Methods("GET")
	apiCreate.Handle("/reports/{id}/verify", admin(http.HandlerFunc(report.VerifyReportHandler))).Methods("POST")
	apiCreate.Handle("/reports/{id}/resolve", admin(http.HandlerFunc(report.ResolveReportHandler))).Methods("POST")
	apiCreate.Handle("/reports/{id}/status", admin(http.HandlerFunc(report.UpdateReportStatusHandler))).Methods("PATCH")
	apiCreate.Handle("/reports/{id}", admin(http.HandlerFunc(report.DeleteReportHandler))).Methods("DELETE")

	apiCreate.Handle("/classify", resident(http.HandlerFunc(classify.ClassifyHandler))).Methods("POST")

	apiCreate.Handle("/drafts", resident(http.HandlerFunc(draft.CreateDraftHandler))).Methods("POST")
	apiCreate.Handle("/drafts/{id}", resident(http.HandlerFunc(draft.DraftHandler))).Methods("GET")
	apiCreate.Handle("/drafts/{id}", resident(http.HandlerFunc(draft.UpdateDraftHandler))).Methods("PATCH")
	apiCreate.Handle("/drafts/{id}", resident(http.HandlerFunc(draft.DiscardDraftHandler))).Methods("DELETE")
	apiCreate.Handle("/drafts/{id}/image", resident(http.HandlerFunc(draft.DraftImageHandler))).Methods("PUT")
	apiCreate.Handle("/drafts/{id}/location", resident(http.HandlerFunc(draft.DraftLocationHandler))).Methods("PUT")
	apiCreate.Handle("/drafts/{id}/submit", resident(http.HandlerFunc(draft.SubmitDraftHandler))).Methods("POST")

	apiCreate.Handle("/profile", anyUser(http.HandlerFunc(profile.ProfileHandler))).Methods("GET")

	return r
}

// gate authenticates the caller and then applies the role requirement
func (a *App) gate(req session.Requirement) func(http.Handler) http.Handler {
	role := a.Auth.RequireRole(req)
	return func(h http.Handler) http.Handler {
		return a.Auth.Authenticate(role(h))
	}
}

// Initialize connects the store and object storage, builds the lifecycle services and the router
func (a *App) Initialize() error {
	store, err := a.openStore()
	if err != nil {
		// if we fail to open the store, then kill the pod
		zap.S().With(err).Error("failed to open report store")
		return err
	}
	a.Store = store

	a.Objects, err = storage.NewCloudinary(a.Config.CloudinaryURL)
	if err != nil {
		return err
	}

	a.Hub = NewNotificationHub()
	publishers := notify.Fanout{a.Hub}
	if a.Config.SendgridAPIKey != "" {
		mailer := notify.NewMailer(store, notify.SendgridDeliver(a.Config.SendgridAPIKey), a.Config.MailFromName, a.Config.MailFromAddress)
		publishers = append(publishers, mailer)
		a.closers = append(a.closers, mailer.Close)
	}

	svc := classifier.NewService(
		classifier.TFLiteLoader(classifier.TFLiteConfig{
			ModelPath:  a.Config.ModelPath,
			LabelsPath: a.Config.LabelsPath,
			Threads:    a.Config.ModelThreads,
		}),
		classifier.WithThreshold(float32(a.Config.DetectionThreshold)),
	)
	a.Detector = svc

	a.Pipeline = intake.NewPipeline(a.Objects, store,
		intake.WithFolder(a.Config.StorageFolder),
		intake.WithPublisher(publishers),
	)
	a.Engine = moderation.NewEngine(store, moderation.WithPublisher(publishers))
	a.Drafts = intake.NewDraftService(a.Pipeline, svc, intake.WithDraftTTL(a.Config.DraftTTL))
	a.Auth = api.NewMiddleware(a.Config.JWTSecret, store)
	a.Scheduler = scheduler.NewScheduler(a.Objects, store, scheduler.Options{
		Folder:   a.Config.StorageFolder,
		Schedule: a.Config.SweepSchedule,
		Grace:    a.Config.SweepGrace,
	})
	// closers run in reverse: drafts drain their background classifications before the model goes
	a.closers = append(a.closers, svc.Close, a.Drafts.Close)

	// initialize api router
	a.initializeRoutes()
	return nil
}

// Close waits for background work and releases the store
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) openStore() (ReportStore, error) {
	switch a.Config.StoreDriver {
	case config.DriverSQLite, config.DriverMySQL:
		s, err := sqlstore.Open(a.Config.StoreDriver, a.Config.SQLDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	case config.DriverMongo:
		client, err := databases.NewClient(&a.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create new client: %w", err)
		}
		ctx, cancel := api.WithQueryTimeout(context.Background())
		defer cancel()
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		db := databases.NewDatabase(&a.Config, client)
		zap.S().Info("lapor-sampah-api has connected to the database")
		return databases.NewMongoStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
