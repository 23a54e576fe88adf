package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/cims/pkg/infrastructure/scheduler"
	"github.com/vsinha/cims/pkg/interfaces/httpapi"
)

const alertSweepJob = "alert-sweep"

func newServeCommand(opts *rootOptions) *cobra.Command {
	var sweepOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the alert sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a, sweepOnStart)
		},
	}
	cmd.Flags().BoolVar(&sweepOnStart, "sweep-on-start", false, "run the alert sweep once before serving")
	return cmd
}

func serve(ctx context.Context, a *app, sweepOnStart bool) error {
	router, err := httpapi.NewRouter(a.svc, httpapi.Options{
		Logger:         a.logger,
		Metrics:        a.metrics,
		MetricsHandler: a.metrics.Handler(),
		Health:         a,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	sched := scheduler.New(a.logger)
	if !a.cfg.Alerts.SweepDisabled {
		err := sched.Add(alertSweepJob, a.cfg.Alerts.Schedule, func(ctx context.Context) error {
			report, err := a.svc.Alerts.Sweep(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("alert sweep finished", zap.Int("raised", report.Total()))
			return nil
		})
		if err != nil {
			return err
		}
		if sweepOnStart {
			if err := sched.RunNow(ctx, alertSweepJob); err != nil {
				a.logger.Warn("initial alert sweep failed", zap.Error(err))
			}
		}
	}

	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	sched.Start()

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), sched.Stop(shutdownCtx))
	})

	return g.Wait()
}
