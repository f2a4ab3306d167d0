// Package source feeds documents into an engine before its index is built.
// A source is read once, in order; documents receive IDs in the order the
// source yields them.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/postgres"
)

// AddFunc receives each document a Source yields. Returning an error stops
// the load.
type AddFunc func(fields store.Fields) error

type Source interface {
	Name() string
	Load(ctx context.Context, add AddFunc) error
}

// Adder is satisfied by *indexer.Engine.
type Adder interface {
	AddDocument(fields store.Fields) (int, error)
}

// Stats describes a completed load.
type Stats struct {
	Source   string
	Added    int
	Duration time.Duration
}

// LoadAll feeds every document of src into engine. Any failure, from the
// source or the engine, is returned.
func LoadAll(ctx context.Context, engine Adder, src Source) (Stats, error) {
	logger := slog.Default().With("component", "source", "source", src.Name())
	start := time.Now()
	stats := Stats{Source: src.Name()}
	err := src.Load(ctx, func(fields store.Fields) error {
		if _, err := engine.AddDocument(fields); err != nil {
			return fmt.Errorf("adding document %d: %w", stats.Added, err)
		}
		stats.Added++
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		logger.Error("document load failed", "added", stats.Added, "error", err)
		return stats, fmt.Errorf("loading from %s: %w", src.Name(), err)
	}
	logger.Info("documents loaded", "added", stats.Added, "elapsed", stats.Duration)
	return stats, nil
}

// FromConfig builds the source selected by cfg.Source. The returned close
// function releases any connection the source holds.
func FromConfig(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Source.Kind {
	case config.SourceSample:
		return Sample(), noop, nil
	case config.SourceFile:
		return File(cfg.Source.Path), noop, nil
	case config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return Postgres(client.DB, cfg.Source), client.Close, nil
	case config.SourceKafka:
		return Kafka(cfg.Kafka, cfg.Source.IngestWindow), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
