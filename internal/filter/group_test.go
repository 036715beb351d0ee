package filter

import (
	"context"
	"testing"
	"time"

	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/store"
)

type evenFilter struct{}

func (evenFilter) Match(pkt *packet.Packet, ctx *Context) (bool, error) {
	return pkt.Sequence()%2 == 0, nil
}

type alwaysTrue struct{}

func (alwaysTrue) Match(pkt *packet.Packet, ctx *Context) (bool, error) { return true, nil }

type alwaysFalse struct{}

func (alwaysFalse) Match(pkt *packet.Packet, ctx *Context) (bool, error) { return false, nil }

func waitForSize(t *testing.T, g *Group, want uint32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if g.Result().Size() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for result size %d, got %d", want, g.Result().Size())
}

func TestFilterLifecycle(t *testing.T) {
	st := store.New()
	mgr := NewManager(st, 2, func(packet.LogMessage) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.AddFilter(ctx, "even", evenFilter{})
	for i := 0; i < 10; i++ {
		st.Insert(packet.New(time.Now(), 1, 1))
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got := mgr.GetFiltered("even", 1, 11)
		if len(got) == 5 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	got := mgr.GetFiltered("even", 1, 11)
	want := []uint32{2, 4, 6, 8, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	mgr.AddFilter(ctx, "even", nil)
	time.Sleep(10 * time.Millisecond)
	if got := mgr.GetFiltered("even", 1, 11); got != nil {
		t.Fatalf("expected empty result after removal, got %v", got)
	}
}

func TestAlwaysTrueMatchesEverything(t *testing.T) {
	st := store.New()
	mgr := NewManager(st, 4, func(packet.LogMessage) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.AddFilter(ctx, "all", alwaysTrue{})
	for i := 0; i < 50; i++ {
		st.Insert(packet.New(time.Now(), 1, 1))
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(mgr.GetFiltered("all", 1, 51)) != 50 {
		time.Sleep(time.Millisecond)
	}
	if got := len(mgr.GetFiltered("all", 1, 51)); got != 50 {
		t.Fatalf("expected 50 matches, got %d", got)
	}
}

func TestAlwaysFalseMatchesNothing(t *testing.T) {
	st := store.New()
	mgr := NewManager(st, 2, func(packet.LogMessage) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.AddFilter(ctx, "none", alwaysFalse{})
	for i := 0; i < 20; i++ {
		st.Insert(packet.New(time.Now(), 1, 1))
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(mgr.GetFiltered("none", 1, 21)); got != 0 {
		t.Fatalf("expected no matches, got %d", got)
	}
}

func TestReplacingFilterDiscardsOldResultAtomically(t *testing.T) {
	st := store.New()
	mgr := NewManager(st, 2, func(packet.LogMessage) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.AddFilter(ctx, "f", alwaysTrue{})
	for i := 0; i < 10; i++ {
		st.Insert(packet.New(time.Now(), 1, 1))
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(mgr.GetFiltered("f", 1, 11)) != 10 {
		time.Sleep(time.Millisecond)
	}

	mgr.AddFilter(ctx, "f", alwaysFalse{})
	time.Sleep(50 * time.Millisecond)
	if got := len(mgr.GetFiltered("f", 1, 11)); got != 0 {
		t.Fatalf("expected replacement group to start matching nothing, got %d", got)
	}
}
