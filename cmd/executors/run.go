package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/executors/internal/config"
	"github.com/vnykmshr/executors/internal/runner"
	"github.com/vnykmshr/executors/pkg/metrics"
)

func newRunCmd(load loader) *cobra.Command {
	var linger time.Duration

	cmd := &cobra.Command{
		Use:   "run [profile...]",
		Short: "Run pool profiles concurrently, optionally serving Prometheus metrics",
		Example: `  executors run --config pools.yaml
  executors run --metrics --metrics-address :9100 --linger 1m fixed cached`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			pools, err := cfg.Lookup(args...)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reports, err := runProfiles(ctx, cfg, pools, logger, linger)
			out := cmd.OutOrStdout()
			for _, rep := range reports {
				if rep.Pool != "" {
					fmt.Fprintln(out, rep)
				}
			}
			return err
		},
	}
	cmd.Flags().Bool("metrics", false, "serve Prometheus metrics while running")
	cmd.Flags().String("metrics-address", ":9090", "listen address of the metrics endpoint")
	cmd.Flags().DurationVar(&linger, "linger", 0, "keep the metrics endpoint up this long after the runs finish")
	return cmd
}

// runProfiles runs every profile in its own goroutine. When metrics are
// enabled the endpoint is served until the runs finish and linger elapsed.
func runProfiles(ctx context.Context, cfg config.Config, pools []config.Pool, logger *zap.Logger, linger time.Duration) ([]runner.Report, error) {
	g, gctx := errgroup.WithContext(ctx)

	r := &runner.Runner{Logger: logger}
	var srv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		r.Registry = metrics.NewRegistryWithConfig(metrics.Config{
			Enabled:   true,
			Registry:  reg,
			Namespace: cfg.Metrics.Namespace,
		})

		ln, err := net.Listen("tcp", cfg.Metrics.Address)
		if err != nil {
			return nil, fmt.Errorf("error while starting the metrics endpoint: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		logger.Info("serving metrics", zap.String("address", ln.Addr().String()))

		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	reports := make([]runner.Report, len(pools))
	runs, rctx := errgroup.WithContext(gctx)
	for i, p := range pools {
		runs.Go(func() error {
			rep, err := r.Run(rctx, p)
			reports[i] = rep
			if err != nil {
				return fmt.Errorf("profile %s: %w", p.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := runs.Wait()
		if srv == nil {
			return err
		}
		if err == nil && linger > 0 {
			select {
			case <-time.After(linger):
			case <-gctx.Done():
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
		return err
	})

	err := g.Wait()
	return reports, err
}
