package liveview

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/session"
)

// event is the wire payload broadcast to every connected client. Exactly
// one of Status/Logs is set per event.
type event struct {
	Namespace string              `json:"namespace"`
	Status    *session.Status     `json:"status,omitempty"`
	Logs      []packet.LogMessage `json:"logs,omitempty"`
}

// Bridge upgrades HTTP connections to websockets and re-broadcasts the
// status/log stream of every Session attached to it.
type Bridge struct {
	hub      *hub
	upgrader websocket.Upgrader
}

// NewBridge builds an empty Bridge. Attach one or more Sessions to it
// before serving traffic.
func NewBridge() *Bridge {
	return &Bridge{
		hub: newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The live view is a same-origin operator dashboard; origin
			// checking is left to a fronting reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Attach wires a Session's status and log callbacks to the bridge's
// broadcast hub, tagging every event with namespace.
func (b *Bridge) Attach(namespace string, sess *session.Session) {
	sess.SetStatusCallback(func(st session.Status) {
		b.publish(event{Namespace: namespace, Status: &st})
	})
	sess.SetLogCallback(func(msgs []packet.LogMessage) {
		b.publish(event{Namespace: namespace, Logs: msgs})
	})
}

func (b *Bridge) publish(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("liveview: failed to marshal event", "error", err)
		return
	}
	b.hub.broadcast(data)
}

// ServeHTTP upgrades the request to a websocket and streams broadcast
// events to it until the connection closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("liveview: upgrade failed", "error", err)
		return
	}

	c := newClient(b.hub, conn)
	b.hub.add(c)

	go c.writePump()
	go c.readPump()
}
