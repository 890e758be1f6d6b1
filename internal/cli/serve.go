package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/contestlens/internal/adapters/http/api"
	"github.com/okian/contestlens/internal/adapters/http/live"
	"github.com/okian/contestlens/internal/adapters/http/site"
	"github.com/okian/contestlens/internal/adapters/http/swagger"
	"github.com/okian/contestlens/internal/adapters/upstream"
	service "github.com/okian/contestlens/internal/app"
	"github.com/okian/contestlens/internal/config"
	"github.com/okian/contestlens/pkg/logger"
	"github.com/okian/contestlens/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6

	// writeMargin is left after the slowest possible fetch to send the reply.
	writeMargin = 5 * time.Second
)

// LivePath is where the dashboard opens its WebSocket.
const LivePath = "/ws"

// backend satisfies api.Dependencies: the proxy goes straight to the
// upstream client, analytics go through the service.
type backend struct {
	*upstream.Client
	*service.Service
}

func newServeCommand(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				g.cfg.Addr = addr
			}
			return serve(cmd.Context(), g.cfg, g.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override, e.g. :9080")
	return cmd
}

func newUpstreamClient(cfg *config.Config, log logger.Logger) *upstream.Client {
	return upstream.NewClient(
		upstream.WithEndpoint(cfg.UpstreamURL),
		upstream.WithTimeout(cfg.UpstreamTimeout()),
		upstream.WithRetries(cfg.UpstreamRetries),
		upstream.WithBackoff(cfg.UpstreamBackoff()),
		upstream.WithUserAgent(cfg.UserAgent),
		upstream.WithLogger(log.Named("upstream")),
	)
}

func newService(cfg *config.Config, fetcher upstream.Fetcher, log logger.Logger) *service.Service {
	return service.New(
		service.WithFetcher(fetcher),
		service.WithBaseline(cfg.BaselineRating),
		service.WithMaxProblems(cfg.MaxProblems),
		service.WithLogger(log.Named("service")),
	)
}

// newHandler assembles every route of the service behind the request-id
// middleware.
func newHandler(ctx context.Context, client *upstream.Client, svc *service.Service, lh *live.Handler, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)
	api.NewServer(backend{Client: client, Service: svc}, svc, log.Named("api")).Register(ctx, mux)
	mux.Handle(LivePath, lh)
	site.Register(ctx, mux)

	return api.RequestIDMiddleware(mux)
}

// upstreamBudget is the longest one fetch can take: every attempt runs into
// its timeout and every backoff is slept.
func upstreamBudget(cfg *config.Config) time.Duration {
	attempts := cfg.UpstreamRetries + 1
	budget := cfg.UpstreamTimeout() * time.Duration(attempts)
	for i := 1; i < attempts; i++ {
		budget += cfg.UpstreamBackoff() * time.Duration(i)
	}
	return budget
}

// newHTTPServer applies the server timeouts. The write timeout always covers
// the upstream budget so a failed fetch still gets its error body out.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      max(writeTimeout, upstreamBudget(cfg)+writeMargin),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func serve(parent context.Context, cfg *config.Config, log logger.Logger) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newUpstreamClient(cfg, log)
	svc := newService(cfg, client, log)
	lh := live.New(svc, log.Named("live"))

	srv := newHTTPServer(cfg, newHandler(ctx, client, svc, lh, log))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("upstream", cfg.UpstreamURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		startSystemMetricsUpdater(gctx, metrics.RefreshInterval())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		// Hijacked connections are not closed by srv.Shutdown.
		lh.Shutdown()
		lh.Wait()
		log.Info(shutdownCtx, "server stopped", logger.Any("stats", svc.GetStats()))
		return err
	})

	return g.Wait()
}

// startSystemMetricsUpdater refreshes runtime gauges every interval until ctx
// is done.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
