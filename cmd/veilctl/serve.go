package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/zoobzio/veil/internal/admin"
	"github.com/zoobzio/veil/internal/telemetry"
	"github.com/zoobzio/veil/keys"
)

const shutdownTimeout = 30 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the key admin API and the scheduled sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Admin.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides admin.addr)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg

	if cfg.Otel.Enabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
			Endpoint:     cfg.Otel.Endpoint,
			Insecure:     cfg.Otel.Insecure,
			ServiceName:  cfg.Otel.ServiceName,
			SamplingRate: cfg.Otel.SamplingRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				c.logger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	a, err := newApp(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	c.app = a

	scheduler, err := newSweeper(ctx, cfg.Admin.SweepSchedule, a.manager, c)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	server := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           admin.NewRouter(admin.NewHandler(a.manager, c.logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("starting admin server", "addr", cfg.Admin.Addr, "sweep", cfg.Admin.SweepSchedule)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	c.logger.Info("shutting down admin server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("server shutdown error", "error", err)
		return err
	}
	c.logger.Info("admin server stopped")
	return nil
}

// newSweeper schedules Manager.Sweep. Runs never overlap.
func newSweeper(ctx context.Context, spec string, m *keys.Manager, c *cli) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := scheduler.AddFunc(spec, func() {
		rotated, err := m.Sweep(ctx)
		if err != nil {
			c.logger.ErrorContext(ctx, "scheduled sweep failed", "operation", "sweep", "rotated", len(rotated), "error", err)
			return
		}
		c.logger.DebugContext(ctx, "scheduled sweep finished", "operation", "sweep", "rotated", len(rotated))
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}
