package liveview

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kaelstrom/packetcore/internal/session"
)

func TestBridgeBroadcastsStatus(t *testing.T) {
	bridge := NewBridge()
	srv := httptest.NewServer(bridge)
	defer srv.Close()

	sess := session.New(session.Config{Namespace: "n", Threads: 2})
	sess.Run(context.Background())
	bridge.Attach("n", sess)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := sess.StartCapture(); err != nil {
		t.Fatalf("start capture: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var e event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Namespace != "n" {
		t.Fatalf("unexpected namespace: %q", e.Namespace)
	}
	if e.Status == nil {
		t.Fatal("expected a status event")
	}
}
