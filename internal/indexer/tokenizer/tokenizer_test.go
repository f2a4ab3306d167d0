package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(text string) []string {
	var out []string
	for t := range Terms(text) {
		out = append(out, t)
	}
	return out
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"basic", "Lucene in Action", []string{"lucene", "in", "action"}},
		{"empty", "", nil},
		{"punctuation only", "?!... ,;", nil},
		{"digits are separators", "55320055Z", []string{"z"}},
		{"mixed digits", "abc123def", []string{"abc", "def"}},
		{"hyphen and apostrophe", "foo-bar don't", []string{"foo", "bar", "don", "t"}},
		{"unicode letters", "Café RÉSUMÉ", []string{"café", "résumé"}},
		{"surrounding whitespace", "  The   Art  ", []string{"the", "art"}},
		{"trailing run", "end", []string{"end"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(tt.input))
		})
	}
}

func TestTermsIsRestartable(t *testing.T) {
	seq := Terms("Managing Gigabytes")
	var first, second []string
	for term := range seq {
		first = append(first, term)
	}
	for term := range seq {
		second = append(second, term)
	}
	assert.Equal(t, []string{"managing", "gigabytes"}, first)
	assert.Equal(t, first, second)
}

func TestTermsStopsEarly(t *testing.T) {
	var got []string
	for term := range Terms("one two three") {
		got = append(got, term)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestTokenizePositions(t *testing.T) {
	tokens := Tokenize("The Art of Computer Science")
	require.Len(t, tokens, 5)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position, "token %q", tok.Term)
	}
	assert.Equal(t, "computer", tokens[3].Term)
}

func TestNormalize(t *testing.T) {
	term, ok := Normalize("Lucene")
	require.True(t, ok)
	assert.Equal(t, "lucene", term)

	_, ok = Normalize("")
	assert.False(t, ok)

	_, ok = Normalize("lucene action")
	assert.False(t, ok)

	term, ok = Normalize("  gigabytes! ")
	require.True(t, ok)
	assert.Equal(t, "gigabytes", term)
}
