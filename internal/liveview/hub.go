// Package liveview bridges a Session's status and log streams to
// websocket clients, for a browser-based live view of a running
// capture. It never touches Session internals beyond the
// SetStatusCallback/SetLogCallback seam the replay CLI also uses.
package liveview

import "sync"

// hub fans a stream of broadcast messages out to every currently
// connected client. A client whose send buffer is full misses that
// message rather than blocking the broadcaster; it stays connected.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// client too slow to drain; drop the message for it rather
			// than block the broadcaster.
		}
	}
}
