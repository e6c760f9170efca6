// Package index holds the immutable inverted index: a term dictionary
// mapping each term to its posting list, plus a flat document table
// addressed by DocNum. An Index is never mutated after Assemble returns,
// so any number of goroutines may read it without locking.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
)

type Index struct {
	analyzer    tokenizer.Analyzer
	terms       map[string]PostingList
	docs        []DocInfo
	byID        map[string]DocNum
	totalTokens int64
}

// Assemble takes ownership of docs and postings. Callers must not modify
// either afterwards.
func Assemble(analyzer tokenizer.Analyzer, docs []DocInfo, postings map[string]PostingList) *Index {
	if postings == nil {
		postings = make(map[string]PostingList)
	}
	idx := &Index{
		analyzer: analyzer,
		terms:    postings,
		docs:     docs,
		byID:     make(map[string]DocNum, len(docs)),
	}
	for i, d := range docs {
		idx.byID[d.ID] = DocNum(i)
		idx.totalTokens += int64(d.Length)
	}
	return idx
}

// Postings returns the posting list for term, or nil when the term is
// absent. The returned slice is shared and must be treated as read-only.
func (x *Index) Postings(term string) PostingList {
	return x.terms[term]
}

func (x *Index) DocFreq(term string) int {
	return len(x.terms[term])
}

func (x *Index) DocCount() int {
	return len(x.docs)
}

func (x *Index) TermCount() int {
	return len(x.terms)
}

// DocLength returns the token count of the document, 0 if unknown.
func (x *Index) DocLength(id string) int {
	n, ok := x.byID[id]
	if !ok {
		return 0
	}
	return x.docs[n].Length
}

// StoredFields returns the stored fields of the document, nil if unknown.
func (x *Index) StoredFields(id string) map[string]string {
	n, ok := x.byID[id]
	if !ok {
		return nil
	}
	return x.docs[n].Fields
}

func (x *Index) Lookup(id string) (DocNum, bool) {
	n, ok := x.byID[id]
	return n, ok
}

func (x *Index) Doc(n DocNum) DocInfo {
	return x.docs[n]
}

func (x *Index) Analyzer() tokenizer.Analyzer {
	return x.analyzer
}

func (x *Index) AvgDocLength() float64 {
	if len(x.docs) == 0 {
		return 0
	}
	return float64(x.totalTokens) / float64(len(x.docs))
}

// Terms returns the dictionary in sorted order.
func (x *Index) Terms() []string {
	terms := make([]string, 0, len(x.terms))
	for term := range x.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Snapshot returns every term with its postings, sorted by term.
func (x *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.terms))
	for _, term := range x.Terms() {
		entries = append(entries, TermEntry{Term: term, Postings: x.terms[term]})
	}
	return entries
}

// Docs returns the document table in DocNum order.
func (x *Index) Docs() []DocInfo {
	return x.docs
}

// Validate checks the structural invariants: unique document IDs, every
// posting refers to an existing row, posting lists strictly ascending
// with positive frequencies.
func (x *Index) Validate() error {
	if len(x.byID) != len(x.docs) {
		return fmt.Errorf("%w: %d documents but %d distinct ids", apperrors.ErrIndexCorrupt, len(x.docs), len(x.byID))
	}
	for term, postings := range x.terms {
		if len(postings) == 0 {
			return fmt.Errorf("%w: term %q has an empty posting list", apperrors.ErrIndexCorrupt, term)
		}
		for i, p := range postings {
			if int(p.Doc) >= len(x.docs) {
				return fmt.Errorf("%w: term %q references unknown document %d", apperrors.ErrIndexCorrupt, term, p.Doc)
			}
			if p.Frequency <= 0 {
				return fmt.Errorf("%w: term %q has frequency %d", apperrors.ErrIndexCorrupt, term, p.Frequency)
			}
			if i > 0 && postings[i-1].Doc >= p.Doc {
				return fmt.Errorf("%w: postings for %q are not ascending", apperrors.ErrIndexCorrupt, term)
			}
		}
	}
	return nil
}
