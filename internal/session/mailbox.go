package session

import (
	"sync"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// mailbox is a one-slot, level-triggered coalescing signal: any number
// of Raise calls between two Drain calls collapse into one wakeup. It
// models the host callbacks' "status changed" / "log arrived" signals,
// which must never be allowed to queue up faster than the host can
// consume them.
type mailbox struct {
	ch chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan struct{}, 1)}
}

// Raise signals the mailbox without blocking. A pending, undrained
// raise is left as-is.
func (m *mailbox) Raise() {
	select {
	case m.ch <- struct{}{}:
	default:
	}
}

// C is the channel a reader goroutine selects on.
func (m *mailbox) C() <-chan struct{} {
	return m.ch
}

// logMailbox additionally deduplicates LogMessages by key: the newest
// message for a given key wins, and the accumulated map is handed to
// the host in one batch per wakeup, cleared on delivery.
type logMailbox struct {
	mailbox

	mu      sync.Mutex
	pending map[string]packet.LogMessage
}

func newLogMailbox() *logMailbox {
	return &logMailbox{mailbox: *newMailbox(), pending: make(map[string]packet.LogMessage)}
}

// Add records msg, keyed by msg.Key(), overwriting any earlier message
// with the same key, then raises the mailbox.
func (m *logMailbox) Add(msg packet.LogMessage) {
	m.mu.Lock()
	m.pending[msg.Key()] = msg
	m.mu.Unlock()
	m.Raise()
}

// Drain returns every pending message and clears the map. Safe to call
// concurrently with Add.
func (m *logMailbox) Drain() []packet.LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	out := make([]packet.LogMessage, 0, len(m.pending))
	for _, msg := range m.pending {
		out = append(out, msg)
	}
	m.pending = make(map[string]packet.LogMessage)
	return out
}
