package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
)

type kafkaSource struct {
	topic  string
	log    kafka.PartitionLog
	window time.Duration
}

// Kafka replays the ingest topic from its oldest retained message up to the
// high-water mark seen when the load starts, so every build sees the same
// documents. Undecodable or invalid events are logged and skipped; a failure
// to add a document stops the load. window bounds how long the replay may
// take.
func Kafka(cfg config.KafkaConfig, window time.Duration) Source {
	return &kafkaSource{
		topic:  cfg.Topics.DocumentIngest,
		log:    kafka.NewPartitionLog(cfg, cfg.Topics.DocumentIngest),
		window: window,
	}
}

func (k *kafkaSource) Name() string { return "kafka:" + k.topic }

func (k *kafkaSource) Load(ctx context.Context, add AddFunc) error {
	replayCtx, cancel := context.WithTimeout(ctx, k.window)
	defer cancel()
	if err := kafka.Replay(replayCtx, k.log, handleEvent(add)); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("replaying %s took longer than %s: %w", k.topic, k.window, err)
		}
		return fmt.Errorf("replaying %s: %w", k.topic, err)
	}
	return nil
}

// handleEvent adapts add to a Kafka message handler.
func handleEvent(add AddFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "kafka-source")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event", "key", string(key), "error", err)
			return nil
		}
		if err := validator.ValidateDocumentEvent(&event); err != nil {
			logger.Warn("skipping invalid document event", "key", string(key), "error", err)
			return nil
		}
		if err := add(event.Fields); err != nil {
			return fmt.Errorf("%w: %w", kafka.ErrAbort, err)
		}
		return nil
	}
}
