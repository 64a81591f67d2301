package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"perun.network/go-perun/log"

	"perun.network/perun-hub-backend/config"
)

const shutdownTimeout = 5 * time.Second

func newServeMetricsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Keep the local cache in sync and expose metrics",
		Long: `Periodically sync the user's channel into the local store and serve
Prometheus metrics on /metrics until interrupted.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String("listen", "", "metrics listen address")
	cmd.Flags().Duration("interval", 10*time.Second, "sync interval")
	rt.bind(cmd.Flags(), map[string]string{config.KeyMetricsAddr: "listen"})

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			return errors.New("interval must be positive")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			return serveMetrics(ctx, rt.cfg.MetricsAddr, rt.registry, interval, s)
		})
	}
	return cmd
}

func metricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, interval time.Duration, s *session) error {
	srv := &http.Server{Addr: addr, Handler: metricsRouter(g), ReadHeaderTimeout: 10 * time.Second}
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	eg.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			syncOnce(ctx, s)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return eg.Wait()
}

func syncOnce(ctx context.Context, s *session) {
	since, err := sinceTxCount(s, nil)
	if err != nil {
		log.WithError(err).Error("sync skipped")
		return
	}
	updates, err := s.payments.Sync(ctx, since, s.user)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("sync failed")
		}
		return
	}
	if len(updates) > 0 {
		log.WithField("since", since).Debugf("synced %d updates", len(updates))
	}
}
