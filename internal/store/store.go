// Package store implements PacketStore, the append-only, sequence
// indexed repository every dissected packet lands in, and SequenceSet,
// the ordered-set view a FilterWorkerGroup populates.
package store

import (
	"context"
	"sync"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// ChangeHandler is invoked after each Insert with the store's new
// maximum sequence number. Handlers run on the inserting goroutine and
// must not block; any coalescing is the handler's own responsibility.
type ChangeHandler func(maxSeq uint32)

// Store is an append-only, sequence-indexed repository. Sequence
// numbers are dense starting at 1, assigned in Insert call order.
type Store struct {
	mu      sync.RWMutex
	cond    *sync.Cond
	packets []*packet.Packet
	maxSeq  uint32

	handlerMu sync.Mutex
	handlers  []ChangeHandler
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Insert assigns the packet the next sequence number, appends it, and
// notifies change handlers. Concurrent inserts are serialized under the
// same lock that guards maxSeq, so maxSeq advances in the same order as
// the sequence numbers themselves and never regresses.
func (s *Store) Insert(p *packet.Packet) uint32 {
	s.mu.Lock()
	s.packets = append(s.packets, p)
	seq := uint32(len(s.packets))
	p.AssignSequence(seq)
	s.maxSeq = seq
	s.cond.Broadcast()
	s.mu.Unlock()

	s.handlerMu.Lock()
	handlers := append([]ChangeHandler(nil), s.handlers...)
	s.handlerMu.Unlock()
	for _, h := range handlers {
		h(seq)
	}
	return seq
}

// Get performs a constant-time lookup by sequence number.
func (s *Store) Get(seq uint32) (*packet.Packet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq == 0 || int(seq) > len(s.packets) {
		return nil, false
	}
	return s.packets[seq-1], true
}

// Range returns packets with sequence numbers in [start, end). Portions
// outside the stored range yield nothing rather than an error.
func (s *Store) Range(start, end uint32) []*packet.Packet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := uint32(len(s.packets))
	if start < 1 {
		start = 1
	}
	if end > n+1 {
		end = n + 1
	}
	if start >= end {
		return nil
	}
	out := make([]*packet.Packet, 0, end-start)
	for seq := start; seq < end; seq++ {
		out = append(out, s.packets[seq-1])
	}
	return out
}

// MaxSequence returns the highest sequence number inserted so far.
func (s *Store) MaxSequence() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSeq
}

// AddChangeHandler registers fn to run after every future insert.
func (s *Store) AddChangeHandler(fn ChangeHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// WaitForChange blocks until MaxSequence() exceeds since, the store
// receives a new insert, or ctx is done, whichever comes first, then
// returns the current maximum. It is how a FilterWorkerGroup parks once
// it has caught up with the store instead of busy-polling.
func (s *Store) WaitForChange(ctx context.Context, since uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	for s.maxSeq <= since && ctx.Err() == nil {
		s.cond.Wait()
	}
	return s.maxSeq
}
