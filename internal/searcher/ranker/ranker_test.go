package ranker

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/parser"
)

func build(t testing.TB, docs map[string]string) *index.Index {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b := indexer.NewBuilder(indexer.BuilderOptions{})
	for _, id := range ids {
		if err := b.Add(indexer.Document{ID: id, Body: docs[id]}); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}
	idx, _ := b.Build()
	return idx
}

func parse(t testing.TB, q string) *parser.Query {
	t.Helper()
	query, err := parser.Parse(q, tokenizer.Plain)
	if err != nil {
		t.Fatalf("Parse(%q): %v", q, err)
	}
	return query
}

func ids(docs []ScoredDoc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}

func TestBothTermsBeatRepeatedSingleTerm(t *testing.T) {
	idx := build(t, map[string]string{
		"A": "beautiful girl",
		"B": strings.Repeat("beautiful ", 5),
	})
	got, stats := Evaluate(parse(t, "beautiful girl"), idx, 10)
	if !reflect.DeepEqual(ids(got), []string{"A", "B"}) {
		t.Fatalf("ranking = %v, want [A B]", ids(got))
	}
	wantA := 0.5*math.Log(2) + 0.5*math.Log(3)
	if math.Abs(got[0].Score-wantA) > 1e-12 {
		t.Errorf("score(A) = %v, want %v", got[0].Score, wantA)
	}
	if math.Abs(got[1].Score-math.Log(2)) > 1e-12 {
		t.Errorf("score(B) = %v, want %v", got[1].Score, math.Log(2))
	}
	if stats.Candidates != 2 || stats.TermDocFreq["girl"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRoundTripSingleDocument(t *testing.T) {
	idx := build(t, map[string]string{"only": "search engines rank documents"})
	got, _ := Evaluate(parse(t, "rank documents"), idx, 10)
	if len(got) != 1 || got[0].DocID != "only" || got[0].Score <= 0 {
		t.Fatalf("expected the document with positive score, got %+v", got)
	}
}

func TestHigherFrequencyScoresAtLeastAsHigh(t *testing.T) {
	idx := build(t, map[string]string{
		"high": "fox fox fox dog",
		"low":  "fox cat cow dog",
		"none": "ant bee cat dog",
	})
	got, _ := Evaluate(parse(t, "fox"), idx, 0)
	if len(got) != 2 || got[0].DocID != "high" || got[0].Score < got[1].Score {
		t.Fatalf("unexpected ranking %+v", got)
	}
}

func TestNoMatchIsEmpty(t *testing.T) {
	idx := build(t, map[string]string{"a": "alpha", "b": "beta"})
	got, stats := Evaluate(parse(t, "gamma delta"), idx, 10)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	if stats.Candidates != 0 {
		t.Errorf("Candidates = %d", stats.Candidates)
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := index.Assemble(tokenizer.Plain, nil, nil)
	if got, _ := Evaluate(parse(t, "anything"), idx, 5); len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}

func TestLimitReturnsBest(t *testing.T) {
	docs := make(map[string]string)
	for i := 0; i < 10; i++ {
		docs[fmt.Sprintf("doc-%02d", i)] = strings.Repeat("match ", i+1) + strings.Repeat("filler ", 10-i)
	}
	idx := build(t, docs)
	all, _ := Evaluate(parse(t, "match"), idx, 0)
	if len(all) != 10 {
		t.Fatalf("expected 10 matches, got %d", len(all))
	}
	one, stats := Evaluate(parse(t, "match"), idx, 1)
	if len(one) != 1 || one[0] != all[0] || one[0].DocID != "doc-09" {
		t.Fatalf("limit 1 = %+v, best = %+v", one, all[0])
	}
	if stats.Candidates != 10 {
		t.Errorf("Candidates = %d, want 10", stats.Candidates)
	}
}

func TestTiesBrokenByDocumentID(t *testing.T) {
	idx := build(t, map[string]string{
		"c": "same words",
		"a": "same words",
		"b": "same words",
	})
	for _, limit := range []int{0, 2} {
		got, _ := Evaluate(parse(t, "same"), idx, limit)
		want := []string{"a", "b", "c"}
		if limit > 0 {
			want = want[:limit]
		}
		if !reflect.DeepEqual(ids(got), want) {
			t.Errorf("limit %d: order = %v, want %v", limit, ids(got), want)
		}
	}
}

func TestMustAndMustNot(t *testing.T) {
	idx := build(t, map[string]string{
		"both":    "cats dogs",
		"cats":    "cats only here",
		"dogs":    "dogs only here",
		"cats-ex": "cats birds",
	})
	got, _ := Evaluate(parse(t, "cats AND dogs"), idx, 0)
	if !reflect.DeepEqual(ids(got), []string{"both"}) {
		t.Errorf("AND = %v", ids(got))
	}
	got, _ = Evaluate(parse(t, "cats -birds"), idx, 0)
	for _, d := range got {
		if d.DocID == "cats-ex" {
			t.Errorf("excluded document returned: %v", ids(got))
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results, got %v", ids(got))
	}
	got, _ = Evaluate(parse(t, "+cats dogs"), idx, 0)
	if len(got) != 3 || got[0].DocID != "both" {
		t.Errorf("+cats dogs = %v", ids(got))
	}
}

func TestStrictlyDescending(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	words := []string{"alpha", "beta", "gamma", "delta", "eps"}
	docs := make(map[string]string)
	for i := 0; i < 200; i++ {
		var sb strings.Builder
		for j := 0; j < 1+r.Intn(20); j++ {
			sb.WriteString(words[r.Intn(len(words))])
			sb.WriteByte(' ')
		}
		docs[fmt.Sprintf("d%03d", i)] = sb.String()
	}
	idx := build(t, docs)
	got, _ := Evaluate(parse(t, "alpha gamma"), idx, 0)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Score < cur.Score || (prev.Score == cur.Score && prev.DocID > cur.DocID) {
			t.Fatalf("order violated at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestTopKMatchesFullSort(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	docs := make([]ScoredDoc, 500)
	for i := range docs {
		docs[i] = ScoredDoc{DocID: fmt.Sprintf("doc-%d", i), Score: float64(r.Intn(50))}
	}
	sorted := append([]ScoredDoc(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return Less(sorted[j], sorted[i]) })
	for _, k := range []int{1, 7, 50, 500, 900} {
		want := sorted
		if k < len(sorted) {
			want = sorted[:k]
		}
		if got := TopK(docs, k); !reflect.DeepEqual(got, want) {
			t.Errorf("TopK(%d) differs from sorted prefix", k)
		}
	}
	if TopK(docs, 0) != nil {
		t.Error("TopK(0) must be nil")
	}
}
