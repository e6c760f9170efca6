package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/parser"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Stats summarises one evaluation for logging and reporting.
type Stats struct {
	Candidates      int
	PostingsTouched int
	TermDocFreq     map[string]int
}

type accumulator struct {
	score float64
	must  int
}

// Evaluate scores every document that matches q and returns at most limit
// of them, highest score first with ties broken by ascending document ID.
// A limit <= 0 returns every match.
//
// Each Should and Must term's posting list is walked once, adding
// tf*idf into a per-document accumulator, so the cost is proportional to
// the postings touched rather than to the corpus size.
func Evaluate(q *parser.Query, idx *index.Index, limit int) ([]ScoredDoc, Stats) {
	stats := Stats{TermDocFreq: make(map[string]int, len(q.Clauses))}
	totalDocs := idx.DocCount()
	acc := make(map[index.DocNum]*accumulator)
	excluded := make(map[index.DocNum]struct{})
	required := 0

	for _, clause := range q.Clauses {
		postings := idx.Postings(clause.Term)
		stats.TermDocFreq[clause.Term] = len(postings)
		stats.PostingsTouched += len(postings)
		switch clause.Occur {
		case parser.MustNot:
			for _, p := range postings {
				excluded[p.Doc] = struct{}{}
			}
			continue
		case parser.Must:
			required++
		}
		if len(postings) == 0 {
			continue
		}
		idf := computeIDF(totalDocs, len(postings))
		for _, p := range postings {
			a, ok := acc[p.Doc]
			if !ok {
				a = &accumulator{}
				acc[p.Doc] = a
			}
			a.score += computeTF(p.Frequency, idx.Doc(p.Doc).Length) * idf
			if clause.Occur == parser.Must {
				a.must++
			}
		}
	}

	result := make([]ScoredDoc, 0, len(acc))
	for doc, a := range acc {
		if a.must < required {
			continue
		}
		if _, skip := excluded[doc]; skip {
			continue
		}
		result = append(result, ScoredDoc{DocID: idx.Doc(doc).ID, Score: a.score})
	}
	stats.Candidates = len(result)
	if limit > 0 && len(result) > limit {
		return TopK(result, limit), stats
	}
	sort.Slice(result, func(i, j int) bool {
		return Less(result[j], result[i])
	})
	return result, stats
}

// Less orders by score, then by descending document ID, so that "greater"
// means a better rank.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

// computeIDF is ln(1 + N/df).
func computeIDF(totalDocs int, docFreq int) float64 {
	if docFreq <= 0 {
		return 0
	}
	return math.Log(1 + float64(totalDocs)/float64(docFreq))
}

// computeTF is the term frequency normalised by document length.
func computeTF(termFreq int, docLength int) float64 {
	if docLength <= 0 {
		return 0
	}
	return float64(termFreq) / float64(docLength)
}
