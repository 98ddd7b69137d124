package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/rbright/consult/internal/config"
	"github.com/rbright/consult/internal/doctor"
	"github.com/rbright/consult/internal/health"
	"github.com/rbright/consult/internal/observe"
	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/version"
	"github.com/rbright/consult/internal/web"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 5 * time.Second
)

// commandServe serves the browser form until ctx ends.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, addr string, logger *slog.Logger) int {
	if addr == "" {
		addr = cfg.Server.Addr
	}

	var metrics *observe.Metrics
	if cfg.Server.Metrics {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    version.Name,
			ServiceVersion: version.Version,
		})
		if err != nil {
			return r.fail(logger, "init metrics failed", err)
		}
		defer func() { _ = shutdown(context.Background()) }()

		metrics, err = observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return r.fail(logger, "create metrics failed", err)
		}
	}

	svc := r.buildServices(ctx, cfg, logger, metrics, true)
	defer svc.Close()

	handler, registry := newServeHandler(cfg, svc, metrics, logger)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return r.fail(logger, "listen failed", err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(r.Stdout, "serving consultation form on http://%s\n", listener.Addr())
	logger.Info("http server listening", "addr", listener.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		registry.Run(gctx, sweepInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return r.fail(logger, "server stopped", err)
	}
	logger.Info("http server stopped", "sessions", registry.Len())
	return 0
}

// newServeHandler assembles the form, health, and metrics routes.
func newServeHandler(cfg config.Config, svc services, metrics *observe.Metrics, logger *slog.Logger) (http.Handler, *session.Registry) {
	registry := session.NewRegistry(svc.deps, cfg.Server.SessionTTL())

	mux := http.NewServeMux()
	web.New(registry, logger, web.Options{Title: cfg.Document.Title}).Register(mux)
	health.New(
		doctor.SpeechCheck(cfg.STT),
		doctor.LLMCheck(cfg.LLM),
		doctor.StoreCheck(svc.store),
	).Register(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", observe.Handler())
	}
	return observe.Middleware(metrics, logger)(mux), registry
}
