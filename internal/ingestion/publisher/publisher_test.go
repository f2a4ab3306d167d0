package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
)

type recorder struct {
	events []kafka.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, event kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) PublishBatch(_ context.Context, events []kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, events...)
	return nil
}

func book(title string) ingestion.DocumentEvent {
	return ingestion.DocumentEvent{Fields: store.Fields{
		"title": {Value: title, Analyzed: true},
	}}
}

func newPublisher(rec *recorder) *Publisher {
	p := New(rec)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func TestIngestStampsAndKeys(t *testing.T) {
	rec := &recorder{}
	p := newPublisher(rec)

	event := book("Lucene in Action")
	resp, err := p.Ingest(context.Background(), &event)
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", resp.Status)
	assert.Len(t, resp.Key, 16)

	require.Len(t, rec.events, 1)
	assert.Equal(t, resp.Key, rec.events[0].Key)
	published := rec.events[0].Value.(*ingestion.DocumentEvent)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), published.IngestedAt)

	again := book("Lucene in Action")
	resp2, err := p.Ingest(context.Background(), &again)
	require.NoError(t, err)
	assert.Equal(t, resp.Key, resp2.Key)
}

func TestIngestKeepsExplicitKey(t *testing.T) {
	rec := &recorder{}
	event := book("Managing Gigabytes")
	event.Key = "isbn-55063554A"
	resp, err := newPublisher(rec).Ingest(context.Background(), &event)
	require.NoError(t, err)
	assert.Equal(t, "isbn-55063554A", resp.Key)
}

func TestIngestRejectsInvalid(t *testing.T) {
	rec := &recorder{}
	_, err := newPublisher(rec).Ingest(context.Background(), &ingestion.DocumentEvent{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, rec.events)
}

func TestIngestPublishFailure(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	event := book("x")
	_, err := newPublisher(rec).Ingest(context.Background(), &event)
	assert.ErrorContains(t, err, "broker down")
}

func TestIngestBatchIsAllOrNothing(t *testing.T) {
	rec := &recorder{}
	p := newPublisher(rec)

	events := []ingestion.DocumentEvent{book("a"), {}, book("c")}
	_, err := p.IngestBatch(context.Background(), events)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, rec.events)

	n, err := p.IngestBatch(context.Background(), []ingestion.DocumentEvent{book("a"), book("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, rec.events, 2)
}
