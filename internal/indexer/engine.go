package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
)

// Engine owns the document store and the inverted index. Documents are added
// during the build phase; BuildIndex freezes the store, after which the engine
// is read-only and safe for concurrent use.
type Engine struct {
	store   *store.Store
	idx     *index.InvertedIndex
	mu      sync.RWMutex
	cfg     config.IndexerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEngine(cfg config.IndexerConfig) *Engine {
	return &Engine{
		store:  store.New(),
		cfg:    cfg,
		logger: slog.Default().With("component", "indexer"),
	}
}

// Open restores a built engine from an index file written by Save.
func Open(cfg config.IndexerConfig, path string) (*Engine, error) {
	reader, err := segment.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer reader.Close()

	entries, err := reader.Entries()
	if err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	docs := reader.Documents()
	e := NewEngine(cfg)
	for i, doc := range docs {
		if doc.ID != i {
			return nil, fmt.Errorf("%w: document at position %d has id %d", segment.ErrCorrupt, i, doc.ID)
		}
		e.store.Add(doc.Fields)
	}
	idx, err := index.FromEntries(len(docs), entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", segment.ErrCorrupt, err)
	}
	e.idx = idx
	e.logger.Info("index loaded",
		"path", path,
		"docs", idx.DocCount(),
		"terms", idx.Terms(),
	)
	return e, nil
}

// WithMetrics attaches collectors updated on add and build.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	if m != nil && e.Built() {
		m.IndexedDocuments.Set(float64(e.idx.DocCount()))
		m.IndexedTerms.Set(float64(e.idx.Terms()))
	}
	return e
}

// AddDocument stores fields and returns the assigned document ID. It fails
// with ErrIndexFrozen once the index has been built.
func (e *Engine) AddDocument(fields store.Fields) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil {
		return 0, apperrors.New(apperrors.ErrIndexFrozen, http.StatusConflict, "documents cannot be added after the index is built")
	}
	for name := range fields {
		if name == "" {
			return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "field name must not be empty")
		}
	}
	docID := e.store.Add(fields)
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document stored", "doc_id", docID, "fields", len(fields))
	return docID, nil
}

// BuildIndex analyzes every stored document and freezes the engine. A second
// call fails with ErrAlreadyBuilt; a failed build leaves the engine unbuilt.
func (e *Engine) BuildIndex(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil {
		return apperrors.New(apperrors.ErrAlreadyBuilt, http.StatusConflict, "index has already been built")
	}
	start := time.Now()
	idx, err := index.Build(ctx, e.store.Documents(), e.cfg.BuildWorkers)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("building index: %w", err)
	}
	e.idx = idx
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
		e.metrics.IndexedDocuments.Set(float64(idx.DocCount()))
		e.metrics.IndexedTerms.Set(float64(idx.Terms()))
	}
	e.logger.Info("index built",
		"docs", idx.DocCount(),
		"terms", idx.Terms(),
		"size", idx.Size(),
		"workers", e.cfg.BuildWorkers,
		"elapsed", elapsed,
	)
	return nil
}

func (e *Engine) Built() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx != nil
}

// index returns the built index or ErrIndexNotBuilt.
func (e *Engine) index() (*index.InvertedIndex, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.idx == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotBuilt, http.StatusServiceUnavailable, "index has not been built")
	}
	return e.idx, nil
}

// Postings returns the postings list of an already-normalised term in field.
func (e *Engine) Postings(field, term string) (index.PostingList, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	return idx.Postings(field, term), nil
}

// DocCount is the number of documents in the built index, or 0 before build.
func (e *Engine) DocCount() int {
	idx, err := e.index()
	if err != nil {
		return 0
	}
	return idx.DocCount()
}

// Terms is the number of distinct (field, term) keys, or 0 before build.
func (e *Engine) Terms() int {
	idx, err := e.index()
	if err != nil {
		return 0
	}
	return idx.Terms()
}

// Size is the number of stored documents.
func (e *Engine) Size() int {
	return e.store.Size()
}

// Document returns every stored field of docID.
func (e *Engine) Document(docID int) (store.Fields, error) {
	return e.store.Get(docID)
}

// GetField returns the stored value of one field of docID, verbatim.
func (e *Engine) GetField(docID int, name string) (string, error) {
	fields, err := e.store.Get(docID)
	if err != nil {
		return "", err
	}
	f, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("field %q of document %d: %w", name, docID, apperrors.ErrNotFound)
	}
	return f.Value, nil
}

// TFIDF scores term against field of docID:
//
//	tf * (ln((1 + N) / (1 + df)) + 1)
//
// It never fails. The result is 0 when the index is not built, the term does
// not normalise to exactly one term, or docID has no posting for it.
func (e *Engine) TFIDF(docID int, term, field string) float64 {
	idx, err := e.index()
	if err != nil {
		return 0
	}
	normalized, ok := tokenizer.Normalize(term)
	if !ok {
		return 0
	}
	postings := idx.Postings(field, normalized)
	p, found := postings.Find(docID)
	if !found {
		return 0
	}
	return ranker.Contribution(p.Frequency, idx.DocCount(), len(postings))
}

// Save writes the built index and stored documents to path.
func (e *Engine) Save(path string) error {
	idx, err := e.index()
	if err != nil {
		return err
	}
	written, err := segment.NewWriter(filepath.Dir(path)).Write(filepath.Base(path), e.store.Documents(), idx.Snapshot())
	if err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	e.logger.Info("index saved", "path", written, "docs", idx.DocCount(), "terms", idx.Terms())
	return nil
}

// IndexPath is where Save writes and where services look for an index file.
func IndexPath(cfg config.IndexerConfig) string {
	name := cfg.IndexFile
	if name == "" {
		name = "index" + segment.Extension
	}
	if filepath.Ext(name) != segment.Extension {
		name += segment.Extension
	}
	return filepath.Join(cfg.DataDir, name)
}
