// Package ranker scores documents against a parsed query with smoothed TF-IDF
// and selects the top-k hits.
package ranker

import (
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
)

// ScoredHit is one ranked document.
type ScoredHit struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// IDF is ln((1 + N) / (1 + df)) + 1. It is always positive, even for a term
// present in every document.
func IDF(docCount, docFreq int) float64 {
	return math.Log(float64(1+docCount)/float64(1+docFreq)) + 1
}

// Contribution is tf * idf for one (document, term) pair.
func Contribution(termFreq, docCount, docFreq int) float64 {
	if termFreq <= 0 {
		return 0
	}
	return float64(termFreq) * IDF(docCount, docFreq)
}

// Score sums the contribution of every posting in postingsPerTerm per
// document. postingsPerTerm holds one list per distinct query term in query
// order; empty lists contribute nothing. Only documents with at least one
// posting appear in the result.
func Score(postingsPerTerm []index.PostingList, docCount int) map[int]float64 {
	scores := make(map[int]float64)
	for _, postings := range postingsPerTerm {
		docFreq := len(postings)
		if docFreq == 0 {
			continue
		}
		idf := IDF(docCount, docFreq)
		for _, posting := range postings {
			scores[posting.DocID] += float64(posting.Frequency) * idf
		}
	}
	return scores
}

// Rank scores postingsPerTerm and returns the topK best hits ordered by score
// descending, then DocID ascending. A topK of zero or less yields nil.
func Rank(postingsPerTerm []index.PostingList, docCount, topK int) []ScoredHit {
	if topK <= 0 {
		return nil
	}
	return TopK(Score(postingsPerTerm, docCount), topK)
}

// Less reports whether a ranks ahead of b.
func Less(a, b ScoredHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Sort orders hits best first.
func Sort(hits []ScoredHit) {
	slices.SortFunc(hits, func(a, b ScoredHit) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		default:
			return 0
		}
	})
}
