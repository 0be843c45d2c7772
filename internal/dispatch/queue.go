package dispatch

import (
	"container/heap"
	"context"
	"fmt"
)

// QueueMode selects how waiting requests are ordered.
type QueueMode string

const (
	// QueueFIFO serves requests in arrival order and ignores priority.
	QueueFIFO QueueMode = "fifo"
	// QueuePriority serves the highest priority first, FIFO among equals.
	QueuePriority QueueMode = "priority"
)

// ParseQueueMode validates a configured mode. Empty means QueueFIFO.
func ParseQueueMode(s string) (QueueMode, error) {
	switch QueueMode(s) {
	case "", QueueFIFO:
		return QueueFIFO, nil
	case QueuePriority:
		return QueuePriority, nil
	default:
		return "", fmt.Errorf("unknown queue mode %q", s)
	}
}

// queued is a waiting request. ctx keeps the submitter's values but not its
// cancellation, since the submitter has already been answered.
type queued struct {
	req Request
	ctx context.Context
	seq uint64
}

type requestQueue interface {
	push(q queued)
	pop() (queued, bool)
	len() int
	ids() []string
}

type fifoQueue struct {
	items []queued
}

func (f *fifoQueue) push(q queued) { f.items = append(f.items, q) }

func (f *fifoQueue) pop() (queued, bool) {
	if len(f.items) == 0 {
		return queued{}, false
	}
	head := f.items[0]
	f.items[0] = queued{}
	f.items = f.items[1:]
	return head, true
}

func (f *fifoQueue) len() int { return len(f.items) }

func (f *fifoQueue) ids() []string {
	out := make([]string, len(f.items))
	for i, q := range f.items {
		out[i] = q.req.ID
	}
	return out
}

// priorityHeap implements heap.Interface.
type priorityHeap []queued

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queued{}
	*h = old[:n-1]
	return item
}

type priorityQueue struct {
	h priorityHeap
}

func (p *priorityQueue) push(q queued) { heap.Push(&p.h, q) }

func (p *priorityQueue) pop() (queued, bool) {
	if p.h.Len() == 0 {
		return queued{}, false
	}
	return heap.Pop(&p.h).(queued), true
}

func (p *priorityQueue) len() int { return p.h.Len() }

// ids returns waiting request IDs in service order.
func (p *priorityQueue) ids() []string {
	cp := make(priorityHeap, len(p.h))
	copy(cp, p.h)
	out := make([]string, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(queued).req.ID)
	}
	return out
}

func newQueue(mode QueueMode) requestQueue {
	if mode == QueuePriority {
		return &priorityQueue{}
	}
	return &fifoQueue{}
}
