package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []Clause
	}{
		{
			name:  "implicit or",
			query: "beautiful girl",
			want:  []Clause{{"beautiful", Should}, {"girl", Should}},
		},
		{
			name:  "single term",
			query: "Beautiful",
			want:  []Clause{{"beautiful", Should}},
		},
		{
			name:  "normalised like the index",
			query: "Hello,World!",
			want:  []Clause{{"hello", Should}, {"world", Should}},
		},
		{
			name:  "explicit or",
			query: "cats OR dogs",
			want:  []Clause{{"cats", Should}, {"dogs", Should}},
		},
		{
			name:  "and requires both sides",
			query: "cats AND dogs",
			want:  []Clause{{"cats", Must}, {"dogs", Must}},
		},
		{
			name:  "not excludes",
			query: "cats NOT dogs",
			want:  []Clause{{"cats", Should}, {"dogs", MustNot}},
		},
		{
			name:  "not outranks plus prefix",
			query: "cats NOT +dogs",
			want:  []Clause{{"cats", Should}, {"dogs", MustNot}},
		},
		{
			name:  "prefix operators",
			query: "+cats -dogs birds",
			want:  []Clause{{"cats", Must}, {"dogs", MustNot}, {"birds", Should}},
		},
		{
			name:  "duplicates collapse",
			query: "cat CAT cat",
			want:  []Clause{{"cat", Should}},
		},
		{
			name:  "exclusion wins over inclusion",
			query: "cat -cat dog",
			want:  []Clause{{"cat", MustNot}, {"dog", Should}},
		},
		{
			name:  "lowercase keywords are terms",
			query: "and or not",
			want:  []Clause{{"and", Should}, {"or", Should}, {"not", Should}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query, tokenizer.Plain)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.query, err)
			}
			if !reflect.DeepEqual(q.Clauses, tt.want) {
				t.Errorf("clauses = %v, want %v", q.Clauses, tt.want)
			}
			if q.RawQuery != tt.query {
				t.Errorf("RawQuery = %q", q.RawQuery)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, query := range []string{"", "   ", "!!! ---", "NOT cats", "-cats", "NOT +girl", "AND OR"} {
		_, err := Parse(query, tokenizer.Plain)
		var empty *EmptyQueryError
		if !errors.As(err, &empty) {
			t.Errorf("Parse(%q): expected EmptyQueryError, got %v", query, err)
			continue
		}
		if !errors.Is(err, apperrors.ErrEmptyQuery) {
			t.Errorf("Parse(%q): error must match ErrEmptyQuery", query)
		}
	}
}

func TestParseUsesAnalyzer(t *testing.T) {
	q, err := Parse("the running dogs", tokenizer.English)
	if err != nil {
		t.Fatal(err)
	}
	if got := q.Terms(); !reflect.DeepEqual(got, []string{"runn", "dog"}) {
		t.Errorf("Terms = %v", got)
	}

	if _, err := Parse("the a of", tokenizer.English); !errors.Is(err, apperrors.ErrEmptyQuery) {
		t.Errorf("stop-word only query must be empty, got %v", err)
	}
}

func TestQueryString(t *testing.T) {
	q, err := Parse("+Cats -dogs birds", tokenizer.Plain)
	if err != nil {
		t.Fatal(err)
	}
	if got := q.String(); got != "+cats -dogs birds" {
		t.Errorf("String = %q", got)
	}
	if q.Positive() != 2 {
		t.Errorf("Positive = %d, want 2", q.Positive())
	}
}
