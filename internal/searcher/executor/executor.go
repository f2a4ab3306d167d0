package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/tracing"
)

// Index is the read side of a built engine.
type Index interface {
	Postings(field, term string) (index.PostingList, error)
	DocCount() int
}

type SearchResult struct {
	Query     string             `json:"query"`
	Field     string             `json:"field"`
	TotalHits int                `json:"total_hits"`
	Hits      []ranker.ScoredHit `json:"hits"`
	TermStats map[string]int     `json:"term_stats"`
}

type Executor struct {
	index   Index
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(idx Index) *Executor {
	return &Executor{
		index:  idx,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) WithMetrics(m *metrics.Metrics) *Executor {
	e.metrics = m
	return e
}

// Search parses raw against field and returns the topK best hits.
func (e *Executor) Search(ctx context.Context, raw, field string, topK int) (*SearchResult, error) {
	q, err := parser.Parse(raw, field)
	if err != nil {
		e.observe(nil, err)
		return nil, err
	}
	return e.Execute(ctx, q, topK)
}

// Execute ranks the documents matching q. Terms missing from the index are
// skipped; documents matching no term never appear.
func (e *Executor) Execute(ctx context.Context, q *parser.Query, topK int) (*SearchResult, error) {
	result, err := e.execute(ctx, q, topK)
	e.observe(result, err)
	return result, err
}

func (e *Executor) execute(ctx context.Context, q *parser.Query, topK int) (*SearchResult, error) {
	if topK <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be positive, got %d", topK)
	}
	terms := q.Distinct()
	_, lookup := tracing.Start(ctx, "postings")
	postingsPerTerm := make([]index.PostingList, 0, len(terms))
	termStats := make(map[string]int, len(terms))
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("searching %s: %w", q, err)
		}
		postings, err := e.index.Postings(q.Field(), term)
		if err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		postingsPerTerm = append(postingsPerTerm, postings)
		termStats[term] = len(postings)
	}
	lookup.SetAttr("terms", len(terms))
	lookup.End()

	_, rank := tracing.Start(ctx, "rank")
	scores := ranker.Score(postingsPerTerm, e.index.DocCount())
	hits := ranker.TopK(scores, topK)
	rank.SetAttr("candidates", len(scores))
	rank.End()
	if hits == nil {
		hits = []ranker.ScoredHit{}
	}
	e.logger.Debug("query executed",
		"query", q.Raw(),
		"field", q.Field(),
		"terms", terms,
		"candidates", len(scores),
		"results", len(hits),
	)
	return &SearchResult{
		Query:     q.Raw(),
		Field:     q.Field(),
		TotalHits: len(scores),
		Hits:      hits,
		TermStats: termStats,
	}, nil
}

func (e *Executor) observe(result *SearchResult, err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	case len(result.Hits) == 0:
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		e.metrics.SearchResultsCount.Observe(0)
	default:
		e.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		e.metrics.SearchResultsCount.Observe(float64(len(result.Hits)))
	}
}
