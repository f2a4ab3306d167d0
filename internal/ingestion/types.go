// Package ingestion defines the document event schema shared by the JSON
// lines feed, the Kafka feed and the publishers that produce them.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
)

// DocumentEvent carries one document to be added to the next index build.
type DocumentEvent struct {
	Key        string       `json:"key,omitempty"`
	Fields     store.Fields `json:"fields"`
	IngestedAt time.Time    `json:"ingested_at,omitzero"`
}

// PublishResponse is returned after an event has been accepted.
type PublishResponse struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

// BatchRequest is the body of a batch ingest call.
type BatchRequest struct {
	Documents []DocumentEvent `json:"documents"`
}

type BatchResponse struct {
	Published int `json:"published"`
}
