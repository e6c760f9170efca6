package ranker

import "container/heap"

// TopK returns the k best documents in rank order using a bounded
// min-heap, so only k entries are ever held in order.
func TopK(docs []ScoredDoc, k int) []ScoredDoc {
	if k <= 0 {
		return nil
	}
	h := make(scoredDocHeap, 0, k+1)
	for _, doc := range docs {
		if h.Len() < k {
			heap.Push(&h, doc)
			continue
		}
		if Less(h[0], doc) {
			h[0] = doc
			heap.Fix(&h, 0)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredDoc)
	}
	return result
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return Less(h[i], h[j]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
