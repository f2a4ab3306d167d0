package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/resilience"
)

// rowScanner is the part of *sql.Rows the feed reads.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type queryFunc func(ctx context.Context, query string) (rowScanner, error)

type pgSource struct {
	query queryFunc
	cfg   config.SourceConfig
	retry resilience.RetryConfig
}

// Postgres yields one document per row of cfg.Table, ordered by cfg.OrderBy.
// AnalyzedColumns become analyzed fields and StoredColumns stored-only ones;
// NULL becomes the empty string. The whole table is read, with retries,
// before any document is yielded, so a retried read never duplicates
// documents.
func Postgres(db *sql.DB, cfg config.SourceConfig) Source {
	return &pgSource{
		cfg: cfg,
		query: func(ctx context.Context, query string) (rowScanner, error) {
			rows, err := db.QueryContext(ctx, query)
			if err != nil {
				return nil, err
			}
			return rows, nil
		},
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			ShouldRetry:  postgres.IsTransient,
		},
	}
}

func (p *pgSource) Name() string { return "postgres:" + p.cfg.Table }

func (p *pgSource) Load(ctx context.Context, add AddFunc) error {
	query, columns, err := buildQuery(p.cfg)
	if err != nil {
		return err
	}
	var docs []store.Fields
	err = resilience.Retry(ctx, "postgres-source", p.retry, func() error {
		docs, err = p.fetch(ctx, query, columns)
		return err
	})
	if err != nil {
		return err
	}
	for _, fields := range docs {
		if err := add(fields); err != nil {
			return err
		}
	}
	return nil
}

type column struct {
	name     string
	analyzed bool
}

func (p *pgSource) fetch(ctx context.Context, query string, columns []column) ([]store.Fields, error) {
	rows, err := p.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", p.cfg.Table, err)
	}
	defer rows.Close()

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	var docs []store.Fields
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", len(docs), err)
		}
		fields := make(store.Fields, len(columns))
		for i, col := range columns {
			fields[col.name] = store.Field{Value: values[i].String, Analyzed: col.analyzed}
		}
		docs = append(docs, fields)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.cfg.Table, err)
	}
	return docs, nil
}

// buildQuery returns the SELECT for cfg with every identifier quoted, and
// the selected columns in order.
func buildQuery(cfg config.SourceConfig) (string, []column, error) {
	if cfg.Table == "" {
		return "", nil, fmt.Errorf("postgres source needs a table")
	}
	seen := make(map[string]bool)
	var columns []column
	for _, list := range []struct {
		names    []string
		analyzed bool
	}{{cfg.AnalyzedColumns, true}, {cfg.StoredColumns, false}} {
		for _, name := range list.names {
			if strings.TrimSpace(name) == "" {
				return "", nil, fmt.Errorf("postgres source column names must not be blank")
			}
			if seen[name] {
				return "", nil, fmt.Errorf("postgres source column %q listed twice", name)
			}
			seen[name] = true
			columns = append(columns, column{name: name, analyzed: list.analyzed})
		}
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("postgres source needs at least one column")
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col.name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteQualified(cfg.Table))
	if cfg.OrderBy != "" {
		query += " ORDER BY " + quoteQualified(cfg.OrderBy)
	}
	return query, columns, nil
}

func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}
