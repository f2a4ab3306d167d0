// Package parser turns a raw query string into a Query scoped to one field,
// using the same analysis the index applies at build time.
package parser

import (
	"net/http"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
)

// Query is an immutable term-set query over a single field.
type Query struct {
	raw      string
	field    string
	terms    []string
	distinct []string
}

// Parse tokenizes raw and scopes the result to field. It fails with
// ErrEmptyQuery when raw yields no terms, and with ErrInvalidInput when field
// is blank.
func Parse(raw, field string) (*Query, error) {
	var terms []string
	for term := range tokenizer.Terms(raw) {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyQuery, http.StatusBadRequest, "query contains no searchable terms")
	}
	if strings.TrimSpace(field) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "field must not be empty")
	}

	seen := make(map[string]struct{}, len(terms))
	distinct := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		distinct = append(distinct, term)
	}
	return &Query{
		raw:      raw,
		field:    field,
		terms:    terms,
		distinct: distinct,
	}, nil
}

func (q *Query) Raw() string { return q.raw }

func (q *Query) Field() string { return q.field }

// Terms returns every term in query order, duplicates included.
func (q *Query) Terms() []string { return slices.Clone(q.terms) }

// Distinct returns each term once, in order of first occurrence.
func (q *Query) Distinct() []string { return slices.Clone(q.distinct) }

func (q *Query) String() string {
	return q.field + ":" + strings.Join(q.terms, " ")
}
