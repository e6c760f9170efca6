package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
)

// Occur says how a clause participates in matching.
type Occur int

const (
	// Should clauses are optional; a document needs at least one of them
	// (or a Must clause) to be a candidate.
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "must"
	case MustNot:
		return "must_not"
	default:
		return "should"
	}
}

type Clause struct {
	Term  string
	Occur Occur
}

// Query is a flat boolean query over analyzed terms.
type Query struct {
	Clauses  []Clause
	RawQuery string
}

// EmptyQueryError is returned when a query string has no positive terms.
type EmptyQueryError struct {
	Query string
}

func (e *EmptyQueryError) Error() string {
	return fmt.Sprintf("query %q contains no searchable terms", e.Query)
}

func (e *EmptyQueryError) Unwrap() error {
	return apperrors.ErrEmptyQuery
}

// Parse turns query into a Query using analyzer a, which must be the
// analyzer the index was built with. Plain words are OR'ed together.
// The keywords AND, OR and NOT and the prefixes + and - are recognised:
// AND makes the terms on both sides required, NOT and - exclude the
// following word, + requires it.
func Parse(query string, a tokenizer.Analyzer) (*Query, error) {
	q := &Query{
		Clauses:  make([]Clause, 0),
		RawQuery: query,
	}
	words := strings.Fields(query)
	next := Should
	for i := 0; i < len(words); i++ {
		word := words[i]
		switch word {
		case "AND":
			q.requireLast()
			if next == Should {
				next = Must
			}
			continue
		case "OR":
			continue
		case "NOT":
			next = MustNot
			continue
		}
		occur := next
		next = Should
		switch {
		case strings.HasPrefix(word, "+") && len(word) > 1:
			// A pending NOT outranks the prefix.
			if occur != MustNot {
				occur = Must
			}
			word = word[1:]
		case strings.HasPrefix(word, "-") && len(word) > 1:
			occur = MustNot
			word = word[1:]
		}
		for term := range a.Terms(word) {
			q.add(term, occur)
		}
	}
	if q.Positive() == 0 {
		return nil, &EmptyQueryError{Query: query}
	}
	return q, nil
}

// Terms returns the distinct Should and Must terms in order of appearance.
func (q *Query) Terms() []string {
	terms := make([]string, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		if c.Occur != MustNot {
			terms = append(terms, c.Term)
		}
	}
	return terms
}

// Positive counts the clauses that can contribute to a match.
func (q *Query) Positive() int {
	n := 0
	for _, c := range q.Clauses {
		if c.Occur != MustNot {
			n++
		}
	}
	return n
}

// String renders the query in canonical form, used as a cache key.
func (q *Query) String() string {
	var sb strings.Builder
	for i, c := range q.Clauses {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch c.Occur {
		case Must:
			sb.WriteByte('+')
		case MustNot:
			sb.WriteByte('-')
		}
		sb.WriteString(c.Term)
	}
	return sb.String()
}

// add records term once. A stronger occurrence replaces a weaker one and
// MustNot always wins.
func (q *Query) add(term string, occur Occur) {
	for i, c := range q.Clauses {
		if c.Term != term {
			continue
		}
		if occur > c.Occur {
			q.Clauses[i].Occur = occur
		}
		return
	}
	q.Clauses = append(q.Clauses, Clause{Term: term, Occur: occur})
}

func (q *Query) requireLast() {
	if n := len(q.Clauses); n > 0 && q.Clauses[n-1].Occur == Should {
		q.Clauses[n-1].Occur = Must
	}
}
