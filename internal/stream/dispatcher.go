package stream

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/serialx/hashring"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// DispatcherContext wires a Dispatcher to its collaborators.
type DispatcherContext struct {
	// Workers is the number of long-lived stream worker goroutines.
	Workers int
	// Dissectors is the fixed stream dissector chain, tried in
	// declared order for each newly observed stream key until one
	// accepts; after that the same dissector is used for the life of
	// the stream.
	Dissectors []Dissector
	// LogCallback receives every LogMessage a stream dissector emits.
	LogCallback func(packet.LogMessage)
	// VPLayersCallback receives virtual layers synthesized by a stream
	// dissector; the caller (Session) wraps each into a new Packet and
	// re-enters it into the main PacketQueue.
	VPLayersCallback func(layers []*packet.Layer)
}

// Dispatcher orders stream chunks by their originating packet sequence
// and fans them out to a fixed pool of per-stream workers, each chosen
// by a stable hash of the stream key so a given stream is always
// handled by the same worker for the life of the Session.
type Dispatcher struct {
	ctx *DispatcherContext

	mu      sync.Mutex
	pending map[uint32][]packet.StreamChunk
	nextSeq uint32

	ring    *hashring.HashRing
	workers map[string]*streamWorker
}

// New builds a Dispatcher with ctx.Workers worker goroutines, each
// registered as a node in a consistent-hash ring keyed by name.
func New(ctx *DispatcherContext) *Dispatcher {
	n := ctx.Workers
	if n < 1 {
		n = 1
	}
	names := make([]string, n)
	for i := range names {
		names[i] = "stream-worker-" + strconv.Itoa(i)
	}
	d := &Dispatcher{
		ctx:     ctx,
		pending: make(map[uint32][]packet.StreamChunk),
		nextSeq: 1,
		ring:    hashring.New(names),
		workers: make(map[string]*streamWorker, n),
	}
	for _, name := range names {
		d.workers[name] = newStreamWorker(name, d)
	}
	return d
}

// Start launches every worker goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, w := range d.workers {
		w.start(ctx)
	}
}

// Insert delivers every chunk a single packet's dissection produced, in
// one atomic call. originSeq is that packet's store sequence, and it is
// written into every chunk's Order.OriginSeq (dissectors run before the
// sequence is assigned). Chunks are buffered until every lower-numbered
// origin sequence has already been delivered, which is how the
// dispatcher enforces per-stream origin ordering even when dissection
// itself completes out of order.
func (d *Dispatcher) Insert(originSeq uint32, chunks []packet.StreamChunk) {
	for i := range chunks {
		chunks[i].Order.OriginSeq = originSeq
	}
	d.mu.Lock()
	d.pending[originSeq] = chunks
	ready := d.drainLocked()
	d.mu.Unlock()

	d.dispatchBatches(ready)
}

// InsertChunks re-injects chunks a stream dissector itself produced
// (e.g. reassembly of a nested protocol). These chunks already carry
// their own order keys and bypass the origin-sequence gate: they are
// routed straight to their worker.
func (d *Dispatcher) InsertChunks(chunks []packet.StreamChunk) {
	d.dispatchBatches(groupByKey(chunks))
}

// drainLocked pops and returns every buffered batch whose origin
// sequence is now contiguous with nextSeq. Caller must hold d.mu.
func (d *Dispatcher) drainLocked() []batch {
	var out []batch
	for {
		chunks, ok := d.pending[d.nextSeq]
		if !ok {
			return out
		}
		delete(d.pending, d.nextSeq)
		d.nextSeq++
		if len(chunks) > 0 {
			out = append(out, groupByKey(chunks)...)
		}
	}
}

type batch struct {
	key    packet.StreamKey
	chunks []packet.StreamChunk
}

// groupByKey splits a flat chunk slice into per-key batches, each
// sorted by order key ascending.
func groupByKey(chunks []packet.StreamChunk) []batch {
	if len(chunks) == 0 {
		return nil
	}
	byKey := make(map[packet.StreamKey][]packet.StreamChunk)
	for _, c := range chunks {
		byKey[c.Key] = append(byKey[c.Key], c)
	}
	out := make([]batch, 0, len(byKey))
	for key, cs := range byKey {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Order.Less(cs[j].Order) })
		out = append(out, batch{key: key, chunks: cs})
	}
	return out
}

func (d *Dispatcher) dispatchBatches(batches []batch) {
	for _, b := range batches {
		w := d.workerFor(b.key)
		w.enqueue(b)
	}
}

// workerFor returns the worker permanently assigned to key by the
// consistent-hash ring.
func (d *Dispatcher) workerFor(key packet.StreamKey) *streamWorker {
	name, _ := d.ring.GetNode(streamKeyString(key))
	return d.workers[name]
}

func streamKeyString(key packet.StreamKey) string {
	return fmt.Sprintf("%s|%s|%d", key.Namespace, key.StreamID, key.Direction)
}
