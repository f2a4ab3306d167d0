// Package store holds the stored, retrievable form of every indexed
// document. Documents are append-only and are identified by dense integer
// IDs assigned in insertion order, starting at 0.
package store

import (
	"fmt"
	"maps"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
)

// Field is a single stored value. Analyzed fields are tokenised and posted
// to the inverted index; the rest are kept only for verbatim retrieval.
type Field struct {
	Value    string `json:"value"`
	Analyzed bool   `json:"analyzed"`
}

// Fields maps a field name to its value.
type Fields map[string]Field

// Document is a stored document and its assigned ID.
type Document struct {
	ID     int    `json:"id"`
	Fields Fields `json:"fields"`
}

// Store is the append-only document store.
type Store struct {
	mu   sync.RWMutex
	docs []Fields
}

func New() *Store {
	return &Store{docs: make([]Fields, 0)}
}

// Add copies fields into the store and returns the assigned document ID.
func (s *Store) Add(fields Fields) int {
	cp := maps.Clone(fields)
	if cp == nil {
		cp = make(Fields)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, cp)
	return len(s.docs) - 1
}

// Get returns a copy of the stored fields of docID.
func (s *Store) Get(docID int) (Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if docID < 0 || docID >= len(s.docs) {
		return nil, fmt.Errorf("document %d: %w", docID, apperrors.ErrNotFound)
	}
	return maps.Clone(s.docs[docID]), nil
}

// Size returns the number of stored documents.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Documents returns a snapshot of every stored document in ID order. The
// field maps are shared with the store and must not be modified.
func (s *Store) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	for id, fields := range s.docs {
		out[id] = Document{ID: id, Fields: fields}
	}
	return out
}
