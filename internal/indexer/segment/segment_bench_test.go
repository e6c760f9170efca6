package segment

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
)

func benchIndex(numDocs int) *index.Index {
	docs := make([]index.DocInfo, numDocs)
	postings := make(map[string]index.PostingList)
	for i := range docs {
		id := fmt.Sprintf("/data/doc-%05d.txt", i)
		docs[i] = index.DocInfo{ID: id, Length: 12, Fields: map[string]string{"fullpath": id}}
		for t := 0; t < 4; t++ {
			term := fmt.Sprintf("term%d", (i+t)%500)
			postings[term] = append(postings[term], index.Posting{Doc: index.DocNum(i), Frequency: 1 + t})
		}
	}
	return index.Assemble(tokenizer.Plain, docs, postings)
}

func BenchmarkWriteSegment(b *testing.B) {
	idx := benchIndex(5000)
	w := NewWriter(b.TempDir())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := w.Write(idx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOpenSegment(b *testing.B) {
	path, err := NewWriter(b.TempDir()).Write(benchIndex(5000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Open(path); err != nil {
			b.Fatal(err)
		}
	}
}
