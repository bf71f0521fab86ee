package port

import (
	"container/heap"
	"time"
)

type txFrame struct {
	payload []byte
	due     time.Time
	seq     uint64 // enqueue order, breaks due-time ties
}

// txQueue is a min-heap on (due, seq).
type txQueue []txFrame

var _ heap.Interface = (*txQueue)(nil)

func (q txQueue) Len() int {
	return len(q)
}

func (q txQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q txQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *txQueue) Push(x any) {
	*q = append(*q, x.(txFrame))
}

func (q *txQueue) Pop() any {
	old := *q
	n := len(old)
	f := old[n-1]
	old[n-1] = txFrame{}
	*q = old[:n-1]
	return f
}

func (q *txQueue) push(f txFrame) {
	heap.Push(q, f)
}

func (q *txQueue) pop() txFrame {
	return heap.Pop(q).(txFrame)
}

func (q txQueue) head() txFrame {
	return q[0]
}
