package ranker

import "container/heap"

// TopK selects the limit best entries of scores with a bounded min-heap and
// returns them best first.
func TopK(scores map[int]float64, limit int) []ScoredHit {
	if limit <= 0 || len(scores) == 0 {
		return nil
	}
	h := &hitHeap{}
	heap.Init(h)
	for docID, score := range scores {
		heap.Push(h, ScoredHit{DocID: docID, Score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ScoredHit, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredHit)
	}
	return result
}

// hitHeap keeps the worst hit at the root so it is evicted first.
type hitHeap []ScoredHit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool { return Less(h[j], h[i]) }

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) {
	*h = append(*h, x.(ScoredHit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
