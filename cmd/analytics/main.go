// Command analytics aggregates the search and index-build events every
// searcher publishes to the analytics topic and serves the combined stats at
// GET /api/v1/analytics/stats.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/server"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
}

// run consumes the analytics topic and serves the aggregate until ctx ends.
// A consumer that aborts takes the HTTP server down with it.
func run(ctx context.Context, cfg *config.Config) error {
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	defer consumer.Close()

	var consuming atomic.Bool
	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) health.ComponentHealth {
		if !consuming.Load() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: cfg.Kafka.Topics.AnalyticsEvents}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics/stats", aggregator.StatsHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		consuming.Store(true)
		defer consuming.Store(false)
		return consumer.Start(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, "analytics", cfg.Server, server.Wrap(mux, nil, cfg.Server.WriteTimeout))
	})
	return g.Wait()
}
