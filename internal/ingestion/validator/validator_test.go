package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
)

func TestValidateDocumentEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   ingestion.DocumentEvent
		invalid []string
	}{
		{
			name: "valid",
			event: ingestion.DocumentEvent{Fields: store.Fields{
				"title": {Value: "Lucene in Action", Analyzed: true},
				"isbn":  {Value: "193398817"},
			}},
		},
		{
			name:  "stored only is allowed",
			event: ingestion.DocumentEvent{Fields: store.Fields{"isbn": {Value: "193398817"}}},
		},
		{
			name:    "no fields",
			event:   ingestion.DocumentEvent{},
			invalid: []string{"fields"},
		},
		{
			name:    "blank field name",
			event:   ingestion.DocumentEvent{Fields: store.Fields{" ": {Value: "x"}}},
			invalid: []string{"fields"},
		},
		{
			name:    "long name",
			event:   ingestion.DocumentEvent{Fields: store.Fields{strings.Repeat("n", 129): {Value: "x"}}},
			invalid: []string{strings.Repeat("n", 129)},
		},
		{
			name:    "huge value",
			event:   ingestion.DocumentEvent{Fields: store.Fields{"body": {Value: strings.Repeat("a", maxValueLength+1)}}},
			invalid: []string{"body"},
		},
		{
			name:    "invalid utf8",
			event:   ingestion.DocumentEvent{Fields: store.Fields{"body": {Value: "\xff\xfe"}}},
			invalid: []string{"body"},
		},
		{
			name: "long key",
			event: ingestion.DocumentEvent{
				Key:    strings.Repeat("k", 256),
				Fields: store.Fields{"title": {Value: "x", Analyzed: true}},
			},
			invalid: []string{"key"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentEvent(&tt.event)
			if len(tt.invalid) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, field := range tt.invalid {
				assert.Contains(t, verr.Fields, field)
			}
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "bad", "a": "worse"}}
	assert.Equal(t, "a: worse; b: bad", err.Error())
}
