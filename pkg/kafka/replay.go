package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
)

// PartitionLog is the read side of one topic, addressed by partition and
// offset rather than through a consumer group.
type PartitionLog interface {
	Partitions(ctx context.Context) ([]int, error)
	// Offsets returns the first retained offset and the high-water mark.
	Offsets(ctx context.Context, partition int) (first, last int64, err error)
	Open(partition int, offset int64) (MessageFetcher, error)
}

// MessageFetcher is satisfied by a partition-bound *kafka.Reader.
type MessageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type topicLog struct {
	brokers []string
	topic   string
}

// NewPartitionLog reads topic directly from cfg.Brokers.
func NewPartitionLog(cfg config.KafkaConfig, topic string) PartitionLog {
	return &topicLog{brokers: cfg.Brokers, topic: topic}
}

// dial tries each broker in turn.
func (l *topicLog) dial(ctx context.Context, connect func(broker string) (*kafka.Conn, error)) (*kafka.Conn, error) {
	if len(l.brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, broker := range l.brokers {
		conn, err := connect(broker)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", broker, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (l *topicLog) Partitions(ctx context.Context) ([]int, error) {
	conn, err := l.dial(ctx, func(broker string) (*kafka.Conn, error) {
		return kafka.DialContext(ctx, "tcp", broker)
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	partitions, err := conn.ReadPartitions(l.topic)
	if err != nil {
		return nil, fmt.Errorf("reading partitions of %s: %w", l.topic, err)
	}
	ids := make([]int, 0, len(partitions))
	for _, p := range partitions {
		ids = append(ids, p.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (l *topicLog) Offsets(ctx context.Context, partition int) (int64, int64, error) {
	conn, err := l.dial(ctx, func(broker string) (*kafka.Conn, error) {
		return kafka.DialLeader(ctx, "tcp", broker, l.topic, partition)
	})
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()
	return conn.ReadOffsets()
}

func (l *topicLog) Open(partition int, offset int64) (MessageFetcher, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   l.brokers,
		Topic:     l.topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   500 * time.Millisecond,
	})
	if err := r.SetOffset(offset); err != nil {
		r.Close()
		return nil, fmt.Errorf("seeking partition %d to %d: %w", partition, offset, err)
	}
	return r, nil
}

// Replay hands every message the topic held when Replay started to handler,
// partition by partition in ascending order, each from its first retained
// offset. Nothing is committed, so every replay sees the same messages.
//
// A handler error wrapping ErrAbort stops the replay and is returned; other
// handler errors are logged and the message skipped. Fetch failures,
// including ctx ending, are returned.
func Replay(ctx context.Context, log PartitionLog, handler MessageHandler) error {
	partitions, err := log.Partitions(ctx)
	if err != nil {
		return err
	}
	logger := slog.Default().With("component", "kafka-replay")
	var handled, failed int
	for _, p := range partitions {
		first, last, err := log.Offsets(ctx, p)
		if err != nil {
			return fmt.Errorf("reading offsets of partition %d: %w", p, err)
		}
		if first >= last {
			continue
		}
		h, f, err := replayPartition(ctx, log, p, first, last, handler, logger)
		handled += h
		failed += f
		if err != nil {
			return err
		}
	}
	logger.Info("replay finished", "partitions", len(partitions), "handled", handled, "failed", failed)
	return nil
}

// replayPartition reads [first, last) of one partition.
func replayPartition(ctx context.Context, log PartitionLog, partition int, first, last int64,
	handler MessageHandler, logger *slog.Logger) (handled, failed int, err error) {
	r, err := log.Open(partition, first)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			return handled, failed, fmt.Errorf("fetching partition %d: %w", partition, err)
		}
		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			if errors.Is(err, ErrAbort) {
				return handled, failed, err
			}
			failed++
			logger.Error("handler failed, message skipped",
				"partition", partition, "offset", msg.Offset, "error", err)
		} else {
			handled++
		}
		if msg.Offset >= last-1 {
			return handled, failed, nil
		}
	}
}
