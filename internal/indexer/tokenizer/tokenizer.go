// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on non-alphanumeric boundaries. The
// plain analyzer stops there; the english analyzer additionally removes
// stop-words and applies a simple suffix-based stemmer.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Analyzer names the normalisation pipeline applied after splitting.
type Analyzer string

const (
	// Plain lower-cases and splits only.
	Plain Analyzer = "plain"
	// English also drops stop-words and stems.
	English Analyzer = "english"
)

// ParseAnalyzer maps a config value to an Analyzer. Unknown and empty
// values fall back to Plain.
func ParseAnalyzer(name string) Analyzer {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(English):
		return English
	default:
		return Plain
	}
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Terms lazily yields the plain-analyzed terms of text.
func Terms(text string) iter.Seq[string] {
	return Plain.Terms(text)
}

// Tokenize returns the plain-analyzed tokens of text with positions.
func Tokenize(text string) []Token {
	return Plain.Tokenize(text)
}

// Terms lazily yields the terms of text. Each call to the returned
// sequence walks the text once; callers wanting a second pass call
// Terms again.
func (a Analyzer) Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if term, ok := a.normalize(text[start:i]); ok && !yield(term) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			if term, ok := a.normalize(text[start:]); ok {
				yield(term)
			}
		}
	}
}

// Tokenize collects Terms into a slice, numbering the surviving terms.
func (a Analyzer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, utf8.RuneCountInString(text)/6+1)
	pos := 0
	for term := range a.Terms(text) {
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	return tokens
}

func (a Analyzer) normalize(word string) (string, bool) {
	word = strings.ToLower(word)
	if word == "" {
		return "", false
	}
	if a != English {
		return word, true
	}
	if len(word) < 2 {
		return "", false
	}
	if _, isStop := stopWords[word]; isStop {
		return "", false
	}
	stemmed := stem(word)
	return stemmed, stemmed != ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
