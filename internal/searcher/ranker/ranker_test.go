package ranker

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDF(t *testing.T) {
	assert.InDelta(t, math.Log(5.0/3.0)+1, IDF(4, 2), 1e-12)
	// a term in every document still weighs 1
	assert.InDelta(t, 1.0, IDF(4, 4), 1e-12)
	assert.Greater(t, IDF(4, 1), IDF(4, 2))
}

func TestContribution(t *testing.T) {
	assert.InDelta(t, 3*IDF(10, 2), Contribution(3, 10, 2), 1e-12)
	assert.Equal(t, 0.0, Contribution(0, 10, 2))
}

func TestRank(t *testing.T) {
	lucene := index.PostingList{{DocID: 0, Frequency: 1}, {DocID: 1, Frequency: 1}}
	action := index.PostingList{{DocID: 0, Frequency: 1}}

	hits := Rank([]index.PostingList{lucene, action, nil}, 4, 10)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].DocID)
	assert.Equal(t, 1, hits[1].DocID)
	assert.InDelta(t, IDF(4, 2)+IDF(4, 1), hits[0].Score, 1e-12)
	assert.InDelta(t, IDF(4, 2), hits[1].Score, 1e-12)
}

func TestRankTiesBreakOnDocID(t *testing.T) {
	postings := index.PostingList{
		{DocID: 2, Frequency: 1},
		{DocID: 5, Frequency: 1},
		{DocID: 7, Frequency: 1},
	}
	hits := Rank([]index.PostingList{postings}, 8, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, 2, hits[0].DocID)
	assert.Equal(t, 5, hits[1].DocID)
	assert.Equal(t, hits[0].Score, hits[1].Score)
}

func TestRankNonPositiveTopK(t *testing.T) {
	postings := index.PostingList{{DocID: 0, Frequency: 1}}
	assert.Nil(t, Rank([]index.PostingList{postings}, 1, 0))
	assert.Nil(t, Rank([]index.PostingList{postings}, 1, -3))
}

func TestRankNoCandidates(t *testing.T) {
	assert.Empty(t, Rank([]index.PostingList{nil, {}}, 4, 10))
}

func TestTopKMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	scores := make(map[int]float64)
	for id := range 500 {
		// few distinct values so ties are common
		scores[id] = float64(rng.IntN(20))
	}
	all := make([]ScoredHit, 0, len(scores))
	for id, s := range scores {
		all = append(all, ScoredHit{DocID: id, Score: s})
	}
	Sort(all)

	for _, k := range []int{1, 7, 50, 500, 1000} {
		got := TopK(scores, k)
		want := all[:min(k, len(all))]
		assert.Equal(t, want, got, "k=%d", k)
	}
}

func BenchmarkRank(b *testing.B) {
	lists := make([]index.PostingList, 3)
	for t := range lists {
		for id := t; id < 10000; id += t + 1 {
			lists[t] = append(lists[t], index.Posting{DocID: id, Frequency: 1 + id%3})
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(lists, 10000, 10)
	}
}

func TestScoreOnlyCandidates(t *testing.T) {
	scores := Score([]index.PostingList{{{DocID: 3, Frequency: 2}}, nil}, 5)
	require.Len(t, scores, 1)
	assert.InDelta(t, 2*IDF(5, 1), scores[3], 1e-12)
}
