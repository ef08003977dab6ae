package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"catalogsync/internal/infra"
	"catalogsync/internal/router"
	"catalogsync/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var syncOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the sync scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&syncOnStart, "sync-on-start", false, "run one synchronization right after startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	deps := router.Deps{Sync: a.sync}
	if a.erp != nil {
		deps.Upstream = a.erp
	}
	if m := infra.NewMailer(a.cfg); m != nil {
		deps.Mailer = m
	} else {
		log.Warn().Msg("SMTP is not configured, quotes cannot be sent")
	}

	var schedulerDone <-chan struct{}
	if a.sync != nil {
		schedulerDone = worker.StartSyncScheduler(ctx, worker.SchedulerConfig{
			Syncer:     a.sync,
			Interval:   a.cfg.SyncInterval(),
			RunOnStart: syncOnStart,
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      router.New(a.cfg, a.db, a.rdb, deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // POST /v1/sync waits for the run
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("catalogsync listening on :%d", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if schedulerDone != nil {
		select {
		case <-schedulerDone:
		case <-shutdownCtx.Done():
			log.Warn().Msg("sync scheduler did not stop in time")
		}
	}
	log.Info().Msg("server exited")
	return nil
}
