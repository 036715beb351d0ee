// Package queue implements the closable packet FIFO that feeds the
// dissector worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// Queue is a bounded-free, closable multi-producer/multi-consumer FIFO
// of packets. Push never blocks and never fails while the queue is
// open; Pop blocks until an item is available, the queue closes, or the
// caller's context is done.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*packet.Packet
	closed bool
}

// New returns an open, empty Queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a packet. It is a silent no-op once the queue is closed.
func (q *Queue) Push(p *packet.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, p)
	q.cond.Signal()
}

// Pop removes and returns the oldest packet, blocking until one is
// available. It returns (nil, false) if the queue closed or ctx was
// canceled before an item arrived.
func (q *Queue) Pop(ctx context.Context) (*packet.Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	for len(q.items) == 0 && !q.closed {
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return p, true
}

// Close idempotently closes the queue and wakes every blocked Pop.
// Pushes after Close are silently dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of items currently buffered. It is a snapshot,
// useful for metrics and tests, not for synchronization.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
