package indexer

import (
	"fmt"
	"iter"
	"log/slog"
	"maps"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
)

// Stored field names set by the intake collaborator.
const (
	FieldFilename = "filename"
	FieldFullPath = "fullpath"
)

// DuplicatePolicy decides what Add does with an ID it has already seen.
type DuplicatePolicy string

const (
	DuplicateReject    DuplicatePolicy = "reject"
	DuplicateOverwrite DuplicatePolicy = "overwrite"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateReject:
		return DuplicateReject, nil
	case DuplicateOverwrite:
		return DuplicateOverwrite, nil
	default:
		return "", fmt.Errorf("%w: unknown duplicate policy %q", apperrors.ErrInvalidInput, s)
	}
}

// Document is one unit of intake. Fields are stored verbatim; Body is
// tokenized and discarded.
type Document struct {
	ID     string
	Fields map[string]string
	Body   string
}

// DuplicateDocumentError reports a repeated ID under DuplicateReject.
type DuplicateDocumentError struct {
	ID string
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("document %q already added in this build", e.ID)
}

func (e *DuplicateDocumentError) Unwrap() error {
	return apperrors.ErrDuplicateDocument
}

type BuilderOptions struct {
	Analyzer   tokenizer.Analyzer
	Duplicates DuplicatePolicy
}

type pendingDoc struct {
	info  index.DocInfo
	freqs map[string]int
}

// Builder accumulates documents for one batch build. It is not safe for
// concurrent use: documents are added strictly one after another.
type Builder struct {
	opts   BuilderOptions
	docs   []pendingDoc
	byID   map[string]int
	logger *slog.Logger
}

func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Analyzer == "" {
		opts.Analyzer = tokenizer.Plain
	}
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateReject
	}
	return &Builder{
		opts:   opts,
		byID:   make(map[string]int),
		logger: slog.Default().With("component", "index-builder"),
	}
}

// Add tokenizes doc and records its term counts, length and stored fields.
func (b *Builder) Add(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is empty", apperrors.ErrInvalidInput)
	}
	freqs := make(map[string]int)
	length := 0
	for term := range b.opts.Analyzer.Terms(doc.Body) {
		freqs[term]++
		length++
	}
	pending := pendingDoc{
		info: index.DocInfo{
			ID:     doc.ID,
			Length: length,
			Fields: maps.Clone(doc.Fields),
		},
		freqs: freqs,
	}

	if slot, exists := b.byID[doc.ID]; exists {
		if b.opts.Duplicates != DuplicateOverwrite {
			return &DuplicateDocumentError{ID: doc.ID}
		}
		b.docs[slot] = pending
		b.logger.Debug("document overwritten", "doc_id", doc.ID, "token_count", length)
		return nil
	}
	b.byID[doc.ID] = len(b.docs)
	b.docs = append(b.docs, pending)
	b.logger.Debug("document added",
		"doc_id", doc.ID,
		"token_count", length,
		"unique_terms", len(freqs),
	)
	return nil
}

// Len returns the number of distinct documents added so far.
func (b *Builder) Len() int {
	return len(b.docs)
}

// Build produces the immutable index and the number of documents in it.
// The Builder is reset and may be reused for a fresh build.
func (b *Builder) Build() (*index.Index, int) {
	postings := make(map[string]index.PostingList)
	docs := make([]index.DocInfo, len(b.docs))
	for n, d := range b.docs {
		docs[n] = d.info
		for term, freq := range d.freqs {
			postings[term] = append(postings[term], index.Posting{
				Doc:       index.DocNum(n),
				Frequency: freq,
			})
		}
	}
	idx := index.Assemble(b.opts.Analyzer, docs, postings)
	b.docs = nil
	b.byID = make(map[string]int)
	b.logger.Debug("index assembled", "docs", idx.DocCount(), "terms", idx.TermCount())
	return idx, idx.DocCount()
}

// BuildIndex drains docs into a fresh Builder. It stops at the first
// error, whether yielded by the sequence or returned by Add.
func BuildIndex(docs iter.Seq2[Document, error], opts BuilderOptions) (*index.Index, int, error) {
	b := NewBuilder(opts)
	for doc, err := range docs {
		if err != nil {
			return nil, 0, err
		}
		if err := b.Add(doc); err != nil {
			return nil, 0, fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
	}
	idx, n := b.Build()
	return idx, n, nil
}
