package tokenizer

import (
	"slices"
	"testing"
)

func TestTermsCaseInsensitive(t *testing.T) {
	got := slices.Collect(Terms("Cat cat CAT"))
	want := []string{"cat", "cat", "cat"}
	if !slices.Equal(got, want) {
		t.Fatalf("Terms = %v, want %v", got, want)
	}
}

func TestTermsSplitting(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"only punctuation", "--- ... !!", nil},
		{"punctuation boundaries", "hello,world!foo-bar", []string{"hello", "world", "foo", "bar"}},
		{"digits kept", "route 66 and 2024", []string{"route", "66", "and", "2024"}},
		{"no stop-word removal", "the girl is a beautiful one", []string{"the", "girl", "is", "a", "beautiful", "one"}},
		{"no stemming", "running dogs", []string{"running", "dogs"}},
		{"unicode letters", "Café Straße", []string{"café", "straße"}},
		{"trailing word", "  leading and trailing", []string{"leading", "and", "trailing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Terms(tt.text))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTermsDeterministic(t *testing.T) {
	text := "The Quick brown fox; the LAZY dog. 42 foxes!"
	first := slices.Collect(Terms(text))
	for i := 0; i < 5; i++ {
		if again := slices.Collect(Terms(text)); !slices.Equal(first, again) {
			t.Fatalf("run %d: %v != %v", i, again, first)
		}
	}
}

func TestTermsEarlyStop(t *testing.T) {
	var got []string
	for term := range Terms("one two three four") {
		got = append(got, term)
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"one", "two"}) {
		t.Fatalf("got %v", got)
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens := Tokenize("Alpha, beta; GAMMA")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if tok.Position != i {
			t.Errorf("token %d has position %d", i, tok.Position)
		}
	}
	if tokens[2].Term != "gamma" {
		t.Errorf("expected gamma, got %q", tokens[2].Term)
	}
}

func TestEnglishAnalyzer(t *testing.T) {
	got := slices.Collect(English.Terms("The runners were running to the stations"))
	want := []string{"runner", "runn", "station"}
	if !slices.Equal(got, want) {
		t.Fatalf("English.Terms = %v, want %v", got, want)
	}
}

func TestParseAnalyzer(t *testing.T) {
	tests := map[string]Analyzer{
		"":         Plain,
		"plain":    Plain,
		"English":  English,
		" english": English,
		"unknown":  Plain,
	}
	for in, want := range tests {
		if got := ParseAnalyzer(in); got != want {
			t.Errorf("ParseAnalyzer(%q) = %q, want %q", in, got, want)
		}
	}
}
