package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/api"
	"github.com/spigell/ses-matcher/internal/scheduler"
	"github.com/spigell/ses-matcher/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when a schedule is set, the periodic ingestion flows",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	serveCmd.Flags().String("schedule", "", `cron schedule for the ingestion flows, e.g. "@every 6h"`)

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.schedule", serveCmd.Flags().Lookup("schedule"))
}

func serve() {
	_, a := setup()
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flows, err := a.Workflow(ctx, true)
	if err != nil {
		a.logger.Fatal("preparing the flows", zap.Error(err))
	}
	matcher, err := a.Matcher(ctx)
	if err != nil {
		a.logger.Fatal("preparing the matcher", zap.Error(err))
	}

	server := api.New(flows, matcher, a.logger)

	var sched *scheduler.Scheduler
	if spec := strings.TrimSpace(a.config.Server.Schedule); spec != "" {
		sched, err = scheduler.New(spec, scheduledJobs(flows), a.logger)
		if err != nil {
			a.logger.Fatal("creating the scheduler", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			a.logger.Fatal("starting the scheduler", zap.Error(err))
		}
	}

	errs := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", a.config.Server.Addr), zap.String("version", version))
		errs <- server.Listen(a.config.Server.Addr)
	}()

	select {
	case err := <-errs:
		if err != nil {
			a.logger.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		a.logger.Info("shutting down", zap.String("reason", "signal received"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown", zap.Error(err))
	}
	if sched != nil {
		stop()
		sched.Stop()
	}
}

// scheduledJobs is one ingestion cycle: candidates are formatted and
// indexed, then requisitions are formatted.
func scheduledJobs(w *workflow.Workflow) []scheduler.Job {
	return []scheduler.Job{
		{Name: "format_candidates", Run: func(ctx context.Context) error {
			_, err := w.FormatCandidates(ctx, workflow.Params{Index: true})
			return err
		}},
		{Name: "format_requisitions", Run: func(ctx context.Context) error {
			_, err := w.FormatRequisitions(ctx, workflow.Params{})
			return err
		}},
	}
}
