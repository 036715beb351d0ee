package dissect

import (
	"context"
	"fmt"

	uatomic "go.uber.org/atomic"

	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/queue"
)

// WorkerContext wires a Pool to its collaborators, mirroring the
// original dissector thread's Context: a queue to pull from, a fixed
// dissector chain to run, and the two callbacks a completed packet
// fans out to.
type WorkerContext struct {
	Queue           *queue.Queue
	Dissectors      []Dissector
	PacketCallback  func(*packet.Packet)
	StreamsCallback func(originSeq uint32, chunks []packet.StreamChunk)
	LogCallback     func(packet.LogMessage)
}

// Stats counts work done by a Pool, safe for concurrent reads while
// workers run.
type Stats struct {
	Processed uatomic.Uint64
	Errors    uatomic.Uint64
}

// Pool is a fixed-size group of worker goroutines, each running the
// same dissector chain against packets pulled from a shared queue.
type Pool struct {
	ctx     *WorkerContext
	workers int
	Stats   Stats
}

// NewPool builds a Pool of the given size. workers is clamped to at
// least 1.
func NewPool(ctx *WorkerContext, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{ctx: ctx, workers: workers}
}

// Start launches the worker goroutines. They run until ctx is done or
// the queue closes, whichever comes first; Start does not block.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	for {
		pkt, ok := p.ctx.Queue.Pop(ctx)
		if !ok {
			return
		}
		p.dissectOne(pkt)
	}
}

// dissectOne runs the full breadth-first dissector chain over pkt, then
// inserts it and forwards any stream chunks produced along the way.
func (p *Pool) dissectOne(pkt *packet.Packet) {
	var chunks []packet.StreamChunk
	pending := append([]*packet.Layer(nil), pkt.RootLayers()...)

	for len(pending) > 0 {
		layer := pending[0]
		pending = pending[1:]

		for _, d := range p.ctx.Dissectors {
			children, layerChunks := p.invoke(d, layer)
			if len(children) > 0 {
				for _, c := range children {
					layer.AddChild(c)
				}
				pending = append(pending, children...)
			}
			chunks = append(chunks, layerChunks...)
		}
	}

	p.Stats.Processed.Inc()
	p.ctx.PacketCallback(pkt)
	p.ctx.StreamsCallback(pkt.Sequence(), chunks)
}

// invoke runs a single dissector against a single layer, recovering
// from panics at this call site (not at the worker's top level) so one
// misbehaving dissector cannot take down the worker goroutine or affect
// sibling dissectors' results for the same layer.
func (p *Pool) invoke(d Dissector, layer *packet.Layer) (children []*packet.Layer, chunks []packet.StreamChunk) {
	dctx := newContext("dissect", d.Name(), d.Handle())

	func() {
		defer func() {
			if r := recover(); r != nil {
				p.Stats.Errors.Inc()
				p.ctx.LogCallback(packet.LogMessage{
					Level:        packet.LogLevelError,
					Message:      fmt.Sprintf("dissector panic: %v", r),
					Domain:       "dissect",
					ResourceName: d.Name(),
					Script:       d.Handle(),
				})
				return
			}
		}()

		result, err := d.Dissect(layer, dctx)
		if err != nil {
			p.Stats.Errors.Inc()
			p.ctx.LogCallback(packet.LogMessage{
				Level:        packet.LogLevelError,
				Message:      err.Error(),
				Domain:       "dissect",
				ResourceName: d.Name(),
				Script:       d.Handle(),
			})
			return
		}
		if result.Accepted {
			children = result.Children
		}
	}()

	for _, msg := range dctx.logs {
		p.ctx.LogCallback(msg)
	}
	chunks = dctx.chunks
	return children, chunks
}
