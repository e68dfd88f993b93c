package sweep

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/linesmerrill/lapor-sampah-api/api/handlers"
	"github.com/linesmerrill/lapor-sampah-api/api/scheduler"
	"github.com/linesmerrill/lapor-sampah-api/config"
	"github.com/linesmerrill/lapor-sampah-api/logging"
)

// Command creates the command that runs the orphaned photo sweep once, for use from an
// external scheduler such as Heroku Scheduler
func Command(configPath *string) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored photos no report references",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.NewFromFile(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("grace") {
				conf.SweepGrace = grace
			}

			a := handlers.App{Config: *conf}
			if err := a.Initialize(); err != nil {
				return err
			}
			defer a.Close()

			log := logging.New(conf.Environment)
			defer func() { _ = log.Sync() }()
			s := scheduler.NewScheduler(a.Objects, a.Store, scheduler.Options{
				Folder: conf.StorageFolder,
				Grace:  conf.SweepGrace,
				Log:    log,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Minute)
			defer cancel()
			res, err := s.SweepOrphans(ctx)
			if err != nil {
				return err
			}
			log.Infow("sweep finished",
				"scanned", res.Scanned,
				"deleted", res.Deleted,
				"failed", res.Failed,
				"skipped", res.Skipped,
			)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", scheduler.DefaultGrace, "Minimum age of an unreferenced photo before it is deleted")
	return cmd
}
