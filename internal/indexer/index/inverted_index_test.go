package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
)

func books() []store.Document {
	rows := [][2]string{
		{"Lucene in Action", "193398817"},
		{"Lucene for Dummies", "55320055Z"},
		{"Managing Gigabytes", "55063554A"},
		{"The Art of Computer Science", "9900333X"},
	}
	docs := make([]store.Document, len(rows))
	for i, r := range rows {
		docs[i] = store.Document{ID: i, Fields: store.Fields{
			"title": {Value: r[0], Analyzed: true},
			"isbn":  {Value: r[1]},
		}}
	}
	return docs
}

func TestBuildPostsAnalyzedFieldsOnly(t *testing.T) {
	idx, err := Build(context.Background(), books(), 1)
	require.NoError(t, err)

	assert.Equal(t, 4, idx.DocCount())
	postings := idx.Postings("title", "lucene")
	require.Len(t, postings, 2)
	assert.Equal(t, 0, postings[0].DocID)
	assert.Equal(t, 1, postings[1].DocID)
	assert.Equal(t, 2, idx.DocFreq("title", "lucene"))

	assert.Nil(t, idx.Postings("isbn", "z"))
	assert.Nil(t, idx.Postings("isbn", "193398817"))
	assert.Equal(t, 0, idx.DocFreq("title", "missing"))
}

func TestBuildCountsFrequenciesAndPositions(t *testing.T) {
	docs := []store.Document{
		{ID: 0, Fields: store.Fields{"body": {Value: "go go GO, gophers go", Analyzed: true}}},
	}
	idx, err := Build(context.Background(), docs, 1)
	require.NoError(t, err)

	p, ok := idx.Postings("body", "go").Find(0)
	require.True(t, ok)
	assert.Equal(t, 4, p.Frequency)
	assert.Equal(t, []int{0, 1, 2, 4}, p.Positions)
	assert.Equal(t, 4, idx.TermFreq(0, "body", "go"))
	assert.Equal(t, 1, idx.TermFreq(0, "body", "gophers"))
	assert.Equal(t, 0, idx.TermFreq(0, "body", "rust"))
}

func TestBuildInvariants(t *testing.T) {
	docs := make([]store.Document, 0, 200)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := 0; i < 200; i++ {
		text := fmt.Sprintf("%s %s %s", words[i%5], words[(i*3)%5], words[(i*7)%5])
		docs = append(docs, store.Document{ID: i, Fields: store.Fields{
			"body": {Value: text, Analyzed: true},
		}})
	}
	idx, err := Build(context.Background(), docs, 4)
	require.NoError(t, err)

	for _, entry := range idx.Snapshot() {
		assert.Equal(t, len(entry.Postings), idx.DocFreq(entry.Field, entry.Term))
		for i, p := range entry.Postings {
			assert.GreaterOrEqual(t, p.Frequency, 1)
			if i > 0 {
				assert.Less(t, entry.Postings[i-1].DocID, p.DocID)
			}
		}
	}
}

func TestParallelBuildMatchesSequential(t *testing.T) {
	docs := make([]store.Document, 0, 101)
	for i := 0; i < 101; i++ {
		docs = append(docs, store.Document{ID: i, Fields: store.Fields{
			"title": {Value: fmt.Sprintf("doc %c%c title", 'a'+i%26, 'a'+i%7), Analyzed: true},
			"body":  {Value: "shared body text shared", Analyzed: true},
		}})
	}
	seq, err := Build(context.Background(), docs, 1)
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 8, 500} {
		par, err := Build(context.Background(), docs, workers)
		require.NoError(t, err)
		assert.Equal(t, seq.Snapshot(), par.Snapshot(), "workers=%d", workers)
		assert.Equal(t, seq.DocCount(), par.DocCount())
	}
}

func TestBuildEmpty(t *testing.T) {
	idx, err := Build(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.DocCount())
	assert.Equal(t, 0, idx.Terms())
}

func TestBuildRejectsGaps(t *testing.T) {
	docs := []store.Document{{ID: 0}, {ID: 2}}
	_, err := Build(context.Background(), docs, 1)
	assert.Error(t, err)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, books(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromEntriesRoundTrip(t *testing.T) {
	idx, err := Build(context.Background(), books(), 2)
	require.NoError(t, err)

	restored, err := FromEntries(idx.DocCount(), idx.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, idx.Snapshot(), restored.Snapshot())
	assert.Equal(t, idx.DocFreq("title", "lucene"), restored.DocFreq("title", "lucene"))
}

func TestFromEntriesValidates(t *testing.T) {
	tests := []struct {
		name    string
		entries []TermEntry
	}{
		{"unsorted", []TermEntry{{Field: "f", Term: "t", Postings: PostingList{{DocID: 1, Frequency: 1}, {DocID: 0, Frequency: 1}}}}},
		{"duplicate doc", []TermEntry{{Field: "f", Term: "t", Postings: PostingList{{DocID: 0, Frequency: 1}, {DocID: 0, Frequency: 1}}}}},
		{"out of range", []TermEntry{{Field: "f", Term: "t", Postings: PostingList{{DocID: 5, Frequency: 1}}}}},
		{"zero frequency", []TermEntry{{Field: "f", Term: "t", Postings: PostingList{{DocID: 0, Frequency: 0}}}}},
		{"empty postings", []TermEntry{{Field: "f", Term: "t"}}},
		{"duplicate key", []TermEntry{
			{Field: "f", Term: "t", Postings: PostingList{{DocID: 0, Frequency: 1}}},
			{Field: "f", Term: "t", Postings: PostingList{{DocID: 1, Frequency: 1}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEntries(2, tt.entries)
			assert.Error(t, err)
		})
	}
}

func TestSnapshotOrdering(t *testing.T) {
	idx, err := Build(context.Background(), books(), 1)
	require.NoError(t, err)
	snap := idx.Snapshot()
	for i := 1; i < len(snap); i++ {
		prev, cur := snap[i-1], snap[i]
		assert.True(t, prev.Field < cur.Field || (prev.Field == cur.Field && prev.Term < cur.Term))
	}
}
