package control

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kaelstrom/packetcore/internal/session"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv := NewServer(sockPath)

	sess := session.New(session.Config{Namespace: "n", Threads: 2})
	sess.Run(context.Background())
	srv.Register("n", sess)

	if err := srv.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return srv, sockPath
}

func TestStartStopStatusRoundTrip(t *testing.T) {
	_, sockPath := newTestServer(t)
	client := NewClient(sockPath)

	resp, err := client.Call(Request{Command: CommandStart, Namespace: "n"})
	if err != nil || !resp.Success {
		t.Fatalf("start failed: resp=%+v err=%v", resp, err)
	}

	resp, err = client.Call(Request{Command: CommandStatus, Namespace: "n"})
	if err != nil || !resp.Success {
		t.Fatalf("status failed: resp=%+v err=%v", resp, err)
	}
	if resp.Status == nil || !resp.Status.Capturing {
		t.Fatalf("expected capturing=true, got %+v", resp.Status)
	}

	resp, err = client.Call(Request{Command: CommandStop, Namespace: "n"})
	if err != nil || !resp.Success {
		t.Fatalf("stop failed: resp=%+v err=%v", resp, err)
	}
}

func TestUnknownNamespaceFails(t *testing.T) {
	_, sockPath := newTestServer(t)
	client := NewClient(sockPath)

	resp, err := client.Call(Request{Command: CommandStatus, Namespace: "missing"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure for unknown namespace")
	}
}

func TestFilterAddAndRemoveRoundTrip(t *testing.T) {
	_, sockPath := newTestServer(t)
	client := NewClient(sockPath)

	resp, err := client.Call(Request{
		Command:   CommandFilterAdd,
		Namespace: "n",
		Args:      map[string]string{"name": "f", "expr": ""},
	})
	if err != nil || !resp.Success {
		t.Fatalf("filter-add failed: resp=%+v err=%v", resp, err)
	}

	resp, err = client.Call(Request{
		Command:   CommandFilterRM,
		Namespace: "n",
		Args:      map[string]string{"name": "f"},
	})
	if err != nil || !resp.Success {
		t.Fatalf("filter-rm failed: resp=%+v err=%v", resp, err)
	}
}
