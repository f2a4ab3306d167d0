// Package kafka carries JSON events over segmentio/kafka-go: a producer for
// the ingest and analytics topics, a group consumer that hands each message
// to a callback, and a group-less replay of a whole topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
)

// ErrAbort stops the consume loop when a MessageHandler error wraps it.
// Other handler errors are logged and the message stays uncommitted.
var ErrAbort = errors.New("consumer aborted")

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the subset of *kafka.Reader the loop drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	handler    MessageHandler
	logger     *slog.Logger
	fetchPause time.Duration
}

// NewConsumer joins cfg.ConsumerGroup on topic. A group without a committed
// offset starts from the oldest retained message.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:     r,
		handler:    handler,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
		fetchPause: time.Second,
	}
}

// Start runs the consume loop until ctx ends, which returns nil, or the
// handler returns an error wrapping ErrAbort, which is returned as is.
// Fetch failures are logged and retried after a pause.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	var handled, failed int
	defer func() {
		c.logger.Info("consumer stopped", "handled", handled, "failed", failed)
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(c.fetchPause):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			if errors.Is(err, ErrAbort) {
				log.Error("handler aborted consumer", "error", err)
				return err
			}
			failed++
			log.Error("handler failed, message left uncommitted", "key", string(msg.Key), "error", err)
			continue
		}
		handled++
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Warn("commit failed", "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding %T message: %w", v, err)
	}
	return v, nil
}
