// Command searcher serves ranked TF-IDF search, stored documents and
// single-term scores over HTTP. It opens the index file the indexer wrote,
// or builds one from the configured source when there is none.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/resilience"
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
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	engine, err := loadEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	engine.WithMetrics(m)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, _, to resilience.State) {
					m.BreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			queryCache = cache.New(cache.WithBreaker(redisClient, breaker), cfg.Redis).WithMetrics(m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	trackers := []handler.Tracker{aggregator}
	if cfg.Analytics.Publish {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector := analytics.NewCollector(analyticsProducer,
			cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		trackers = append(trackers, collector)
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !engine.Built() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not built"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", engine.DocCount())}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", health.Probe(2*time.Second, redisClient.Ping))
	}

	exec := executor.New(engine).WithMetrics(m)
	h := handler.New(exec, engine, queryCache, cfg.Search).WithMetrics(m).WithTrackers(trackers...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/tfidf", h.TFIDF)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics/stats", aggregator.StatsHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	return server.Run(ctx, "search", cfg.Server, server.Wrap(mux, m, cfg.Server.WriteTimeout))
}

// loadEngine opens the index file written by the indexer. Without one it
// builds a fresh index from the configured source.
func loadEngine(ctx context.Context, cfg *config.Config) (*indexer.Engine, error) {
	path := indexer.IndexPath(cfg.Indexer)
	if _, err := os.Stat(path); err == nil {
		return indexer.Open(cfg.Indexer, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	slog.Info("no index file, building from source", "path", path, "source", cfg.Source.Kind)
	src, closeSource, err := source.FromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	engine := indexer.NewEngine(cfg.Indexer)
	if _, err := source.LoadAll(ctx, engine, src); err != nil {
		return nil, err
	}
	if err := engine.BuildIndex(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}
