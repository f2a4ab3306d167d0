package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	output := flag.String("out", "", "index file to write (default: indexer.dataDir/indexer.indexFile)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *output
	if path == "" {
		path = indexer.IndexPath(cfg.Indexer)
	}
	if err := run(ctx, cfg, path); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string) error {
	slog.Info("starting indexer", "source", cfg.Source.Kind, "workers", cfg.Indexer.BuildWorkers)
	start := time.Now()

	src, closeSource, err := source.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating source: %w", err)
	}
	defer closeSource()

	engine := indexer.NewEngine(cfg.Indexer)
	stats, err := source.LoadAll(ctx, engine, src)
	if err != nil {
		return err
	}
	if err := engine.BuildIndex(ctx); err != nil {
		return err
	}
	if err := engine.Save(path); err != nil {
		return err
	}

	if cfg.Analytics.Publish {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 1, 1, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		collector.Track(analytics.IndexEvent{
			Type:      analytics.EventIndexBuild,
			Source:    stats.Source,
			Documents: engine.DocCount(),
			Terms:     engine.Terms(),
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
		collector.Close()
	}

	slog.Info("indexer finished",
		"path", path,
		"docs", engine.DocCount(),
		"elapsed", time.Since(start),
	)
	return nil
}
