package dissect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/queue"
	"github.com/kaelstrom/packetcore/internal/store"
)

type fakeDissector struct {
	name   string
	handle packet.ScriptHandle
	fn     func(layer *packet.Layer, ctx *Context) (Result, error)
}

func (f *fakeDissector) Name() string               { return f.name }
func (f *fakeDissector) Handle() packet.ScriptHandle { return f.handle }
func (f *fakeDissector) Dissect(layer *packet.Layer, ctx *Context) (Result, error) {
	return f.fn(layer, ctx)
}

func newTestPacket(ns string) *packet.Packet {
	pkt := packet.New(time.Now(), 1, 1)
	pkt.AddRootLayer(packet.NewLayer(ns, ns, []byte{0xAA}))
	return pkt
}

func TestSingleLayerPipeline(t *testing.T) {
	q := queue.New()
	st := store.New()

	d := &fakeDissector{name: "d", fn: func(layer *packet.Layer, ctx *Context) (Result, error) {
		if layer.Name != "n" {
			return Declined, nil
		}
		return Result{Accepted: true, Children: []*packet.Layer{
			packet.NewLayer("n", "n.a", []byte{0x01}),
		}}, nil
	}}

	wctx := &WorkerContext{
		Queue:      q,
		Dissectors: []Dissector{d},
		PacketCallback: func(p *packet.Packet) {
			st.Insert(p)
		},
		StreamsCallback: func(seq uint32, chunks []packet.StreamChunk) {},
		LogCallback:     func(msg packet.LogMessage) {},
	}
	pool := NewPool(wctx, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 3; i++ {
		q.Push(newTestPacket("n"))
	}

	deadline := time.Now().Add(time.Second)
	for st.MaxSequence() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if st.MaxSequence() != 3 {
		t.Fatalf("expected 3 packets stored, got %d", st.MaxSequence())
	}

	for seq := uint32(1); seq <= 3; seq++ {
		pkt, ok := st.Get(seq)
		if !ok {
			t.Fatalf("missing packet %d", seq)
		}
		roots := pkt.RootLayers()
		if len(roots) != 1 || len(roots[0].Children) != 1 {
			t.Fatalf("expected one root with one child, got %+v", roots)
		}
		child := roots[0].Children[0]
		if child.Name != "n.a" || string(child.Payload) != "\x01" {
			t.Fatalf("unexpected child layer: %+v", child)
		}
	}
}

func TestDissectorFaultIsolation(t *testing.T) {
	q := queue.New()
	st := store.New()

	faulty := &fakeDissector{name: "faulty.js", fn: func(layer *packet.Layer, ctx *Context) (Result, error) {
		panic("boom")
	}}
	erroring := &fakeDissector{name: "erroring.js", fn: func(layer *packet.Layer, ctx *Context) (Result, error) {
		return Declined, errors.New("bad input")
	}}
	good := &fakeDissector{name: "good.js", fn: func(layer *packet.Layer, ctx *Context) (Result, error) {
		return Result{Accepted: true}, nil
	}}

	var mu sync.Mutex
	var logs []packet.LogMessage
	wctx := &WorkerContext{
		Queue:      q,
		Dissectors: []Dissector{faulty, erroring, good},
		PacketCallback: func(p *packet.Packet) {
			st.Insert(p)
		},
		StreamsCallback: func(seq uint32, chunks []packet.StreamChunk) {},
		LogCallback: func(msg packet.LogMessage) {
			mu.Lock()
			logs = append(logs, msg)
			mu.Unlock()
		},
	}
	pool := NewPool(wctx, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		q.Push(newTestPacket("n"))
	}

	deadline := time.Now().Add(time.Second)
	for st.MaxSequence() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if st.MaxSequence() != 5 {
		t.Fatalf("expected all 5 packets to land despite faults, got %d", st.MaxSequence())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(logs) != 10 {
		t.Fatalf("expected 2 error logs per packet (panic + error), got %d: %+v", len(logs), logs)
	}
	for _, l := range logs {
		if l.Level != packet.LogLevelError {
			t.Fatalf("expected error level, got %v", l.Level)
		}
	}
}
