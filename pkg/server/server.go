// Package server runs the HTTP front of each service: the shared middleware
// chain and a listener that drains on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/middleware"
)

// Wrap applies the middleware every service uses. From the outside in:
// request ID, metrics when m is non-nil, and a timeout when timeout > 0.
func Wrap(h http.Handler, m *metrics.Metrics, timeout time.Duration) http.Handler {
	if timeout > 0 {
		h = middleware.Timeout(timeout)(h)
	}
	if m != nil {
		h = middleware.Metrics(m)(h)
	}
	return middleware.RequestID(h)
}

// Run serves h on cfg.Port until ctx ends, then gives in-flight requests
// cfg.ShutdownTimeout to finish. A listener failure is returned; a normal
// shutdown returns nil.
func Run(ctx context.Context, name string, cfg config.ServerConfig, h http.Handler) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("%s: listen: %w", name, err)
	}
	return Serve(ctx, name, cfg, ln, h)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, name string, cfg config.ServerConfig, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	logger := slog.Default().With("service", name)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: serve: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "grace", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: shutdown: %w", name, err)
		}
		return nil
	})
	err := g.Wait()
	logger.Info("stopped")
	return err
}
