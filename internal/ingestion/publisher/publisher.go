// Package publisher validates document events and publishes them to the
// document ingest topic, keyed by content hash so identical documents land on
// the same partition.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type Publisher struct {
	producer EventPublisher
	now      func() time.Time
	logger   *slog.Logger
}

func New(producer EventPublisher) *Publisher {
	return &Publisher{
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest validates event, stamps it and publishes it.
func (p *Publisher) Ingest(ctx context.Context, event *ingestion.DocumentEvent) (*ingestion.PublishResponse, error) {
	msg, err := p.prepare(event)
	if err != nil {
		return nil, err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return nil, fmt.Errorf("publishing document %s: %w", msg.Key, err)
	}
	p.logger.Debug("document published", "key", msg.Key, "fields", len(event.Fields))
	return &ingestion.PublishResponse{Key: msg.Key, Status: "ACCEPTED"}, nil
}

// IngestBatch validates every event before publishing any, then writes them
// in one batch.
func (p *Publisher) IngestBatch(ctx context.Context, events []ingestion.DocumentEvent) (int, error) {
	msgs := make([]kafka.Event, 0, len(events))
	for i := range events {
		msg, err := p.prepare(&events[i])
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := p.producer.PublishBatch(ctx, msgs); err != nil {
		return 0, fmt.Errorf("publishing %d documents: %w", len(msgs), err)
	}
	p.logger.Info("documents published", "count", len(msgs))
	return len(msgs), nil
}

func (p *Publisher) prepare(event *ingestion.DocumentEvent) (kafka.Event, error) {
	if err := validator.ValidateDocumentEvent(event); err != nil {
		return kafka.Event{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
	}
	if event.Key == "" {
		key, err := contentKey(event)
		if err != nil {
			return kafka.Event{}, err
		}
		event.Key = key
	}
	if event.IngestedAt.IsZero() {
		event.IngestedAt = p.now().UTC()
	}
	return kafka.Event{Key: event.Key, Value: event}, nil
}

// contentKey hashes the fields; encoding/json sorts map keys so the hash is
// stable.
func contentKey(event *ingestion.DocumentEvent) (string, error) {
	data, err := json.Marshal(event.Fields)
	if err != nil {
		return "", fmt.Errorf("hashing document: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))[:16], nil
}
