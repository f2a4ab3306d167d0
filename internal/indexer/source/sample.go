package source

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
)

var books = []struct{ title, isbn string }{
	{"Lucene in Action", "193398817"},
	{"Lucene for Dummies", "55320055Z"},
	{"Managing Gigabytes", "55063554A"},
	{"The Art of Computer Science", "9900333X"},
}

type sample struct{}

// Sample yields the four-book demo corpus. Every book has an analyzed title,
// an empty analyzed content field, an analyzed "field" mirroring the title
// and a stored-only isbn.
func Sample() Source { return sample{} }

func (sample) Name() string { return "sample" }

func (sample) Load(ctx context.Context, add AddFunc) error {
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := add(store.Fields{
			"title":   {Value: b.title, Analyzed: true},
			"content": {Value: "", Analyzed: true},
			"field":   {Value: b.title, Analyzed: true},
			"isbn":    {Value: b.isbn},
		}); err != nil {
			return err
		}
	}
	return nil
}
