// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits it into maximal runs of letters; every
// other rune (digits, punctuation, whitespace) is a separator and is dropped.
// The same rules are applied at index time and at query time.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Terms returns a lazy sequence of the normalised terms in text. Each
// iteration re-scans text, so the sequence can be ranged over any number of
// times.
func Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			if unicode.IsLetter(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(strings.ToLower(text[start:i])) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(strings.ToLower(text[start:]))
		}
	}
}

// Tokenize breaks text into a slice of lowercased Tokens with positions
// counted from zero.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, utf8.RuneCountInString(text)/6)
	pos := 0
	for term := range Terms(text) {
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Normalize reduces s to the single term it tokenises to. ok is false when s
// yields no term or more than one.
func Normalize(s string) (term string, ok bool) {
	n := 0
	for t := range Terms(s) {
		if n > 0 {
			return "", false
		}
		term = t
		n++
	}
	return term, n == 1
}
