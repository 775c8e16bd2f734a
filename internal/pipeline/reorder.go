package pipeline

import "container/heap"

// reorderBuffer restores frame-index order in front of the sequential
// deduplicator. Concurrent workers complete frames out of order; the
// buffer holds each result until every lower index has been released,
// so its size is bounded by the worker count, not the video length.
type reorderBuffer struct {
	next int
	h    resultHeap
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{}
}

// push inserts one completed result and returns the (possibly empty)
// run of consecutive results now releasable in order.
func (b *reorderBuffer) push(res FrameResult) []FrameResult {
	heap.Push(&b.h, res)
	var out []FrameResult
	for b.h.Len() > 0 && b.h[0].Frame.Index == b.next {
		out = append(out, heap.Pop(&b.h).(FrameResult))
		b.next++
	}
	return out
}

// pending reports how many results are still held back.
func (b *reorderBuffer) pending() int { return b.h.Len() }

type resultHeap []FrameResult

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Frame.Index < h[j].Frame.Index }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(FrameResult)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
