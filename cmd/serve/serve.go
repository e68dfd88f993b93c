package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/api/handlers"
	"github.com/linesmerrill/lapor-sampah-api/config"
)

const shutdownTimeout = 15 * time.Second

// Command creates the command that runs the HTTP API and the background jobs
func Command(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the report API",
		Long:  "Serve the report API and run the scheduled orphaned photo sweep until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.NewFromFile(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, *conf)
		},
	}
}

func run(ctx context.Context, conf config.Config) error {
	a := handlers.App{Config: conf}
	if err := a.Initialize(); err != nil { // initialize database and router
		return err
	}
	defer a.Close()

	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.Scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + conf.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("lapor-sampah-api is up and running",
			"port", conf.Port,
			"url", conf.BaseURL,
			"store", conf.StoreDriver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.S().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
