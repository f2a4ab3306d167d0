// Package index implements the field-scoped inverted index. An index is
// built once from a snapshot of stored documents and is read-only
// afterwards, so lookups need no locking.
package index

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/tokenizer"
)

type InvertedIndex struct {
	postings map[Key]PostingList
	docCount int
	size     int64
}

// docTerms is the per-document result of analysis, merged in DocID order.
type docTerms map[Key]*Posting

// Build analyzes every document and returns the resulting index. Documents
// must be ordered by ID with no gaps. When workers > 1 analysis is spread
// across goroutines; the merge is always sequential in DocID order so the
// result does not depend on the worker count.
func Build(ctx context.Context, docs []store.Document, workers int) (*InvertedIndex, error) {
	for i, doc := range docs {
		if doc.ID != i {
			return nil, fmt.Errorf("document at position %d has id %d", i, doc.ID)
		}
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(docs) {
		workers = max(len(docs), 1)
	}

	analyzed := make([]docTerms, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(docs) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, len(docs))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				analyzed[i] = analyzeDocument(docs[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing documents: %w", err)
	}

	idx := &InvertedIndex{
		postings: make(map[Key]PostingList),
		docCount: len(docs),
	}
	for _, terms := range analyzed {
		for key, posting := range terms {
			idx.postings[key] = append(idx.postings[key], *posting)
			idx.size += int64(len(key.Field) + len(key.Term) + len(posting.Positions)*8 + 32)
		}
	}
	return idx, nil
}

// analyzeDocument accumulates term frequencies and positions for every
// analyzed field of doc.
func analyzeDocument(doc store.Document) docTerms {
	terms := make(docTerms)
	for name, field := range doc.Fields {
		if !field.Analyzed {
			continue
		}
		for _, token := range tokenizer.Tokenize(field.Value) {
			key := Key{Field: name, Term: token.Term}
			p, exists := terms[key]
			if !exists {
				p = &Posting{
					DocID:     doc.ID,
					Positions: make([]int, 0, 2),
				}
				terms[key] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
	}
	return terms
}

// FromEntries rebuilds an index from persisted entries, checking that every
// postings list is sorted, unique, in range and has positive frequencies.
func FromEntries(docCount int, entries []TermEntry) (*InvertedIndex, error) {
	idx := &InvertedIndex{
		postings: make(map[Key]PostingList, len(entries)),
		docCount: docCount,
	}
	for _, entry := range entries {
		key := Key{Field: entry.Field, Term: entry.Term}
		if _, dup := idx.postings[key]; dup {
			return nil, fmt.Errorf("duplicate entry for %s:%q", entry.Field, entry.Term)
		}
		if len(entry.Postings) == 0 {
			return nil, fmt.Errorf("empty postings for %s:%q", entry.Field, entry.Term)
		}
		prev := -1
		for _, p := range entry.Postings {
			if p.DocID <= prev || p.DocID >= docCount {
				return nil, fmt.Errorf("postings for %s:%q out of order or range at doc %d", entry.Field, entry.Term, p.DocID)
			}
			if p.Frequency < 1 {
				return nil, fmt.Errorf("non-positive frequency for %s:%q in doc %d", entry.Field, entry.Term, p.DocID)
			}
			prev = p.DocID
			idx.size += int64(len(entry.Field) + len(entry.Term) + len(p.Positions)*8 + 32)
		}
		idx.postings[key] = entry.Postings
	}
	return idx, nil
}

// Postings returns the postings list of term in field, or nil. The returned
// slice is shared with the index and must not be modified.
func (m *InvertedIndex) Postings(field, term string) PostingList {
	return m.postings[Key{Field: field, Term: term}]
}

// DocFreq returns the number of documents whose field contains term.
func (m *InvertedIndex) DocFreq(field, term string) int {
	return len(m.postings[Key{Field: field, Term: term}])
}

// TermFreq returns how often term occurs in field of docID, or 0.
func (m *InvertedIndex) TermFreq(docID int, field, term string) int {
	p, ok := m.Postings(field, term).Find(docID)
	if !ok {
		return 0
	}
	return p.Frequency
}

func (m *InvertedIndex) DocCount() int {
	return m.docCount
}

// Terms returns the number of distinct (field, term) keys.
func (m *InvertedIndex) Terms() int {
	return len(m.postings)
}

// Size is an estimate of the index's in-memory footprint in bytes.
func (m *InvertedIndex) Size() int64 {
	return m.size
}

// Snapshot returns every postings list ordered by field, then term.
func (m *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.postings))
	for key, postings := range m.postings {
		entries = append(entries, TermEntry{
			Field:    key.Field,
			Term:     key.Term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}
