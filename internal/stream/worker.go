package stream

import (
	"context"
	"fmt"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// streamBuffer is an append-only byte accumulator with a read cursor.
// clone() is used to let a candidate dissector try reading without
// committing the cursor advance unless it actually accepts the stream.
type streamBuffer struct {
	data     []byte
	consumed int
}

func (b *streamBuffer) clone() *streamBuffer {
	return &streamBuffer{data: b.data, consumed: b.consumed}
}

func (b *streamBuffer) append(chunks []packet.StreamChunk) {
	for _, c := range chunks {
		b.data = append(b.data, c.Payload...)
	}
}

// Read implements Reader.
func (b *streamBuffer) Read(n int) (data []byte, ok bool, eof bool) {
	avail := len(b.data) - b.consumed
	if avail < n {
		return nil, false, false
	}
	out := b.data[b.consumed : b.consumed+n]
	b.consumed += n
	return out, true, false
}

// streamState tracks one (namespace, stream-id, direction) stream's
// accumulated bytes and, once chosen, the single dissector processing
// it for the rest of the Session's life.
type streamState struct {
	key      packet.StreamKey
	buf      *streamBuffer
	selected Dissector
}

// streamWorker owns a disjoint subset of stream keys (assigned by the
// dispatcher's consistent-hash ring) and processes them one batch at a
// time on its own goroutine, so per-stream ordering never needs a lock.
type streamWorker struct {
	name   string
	disp   *Dispatcher
	in     chan batch
	states map[packet.StreamKey]*streamState
}

func newStreamWorker(name string, d *Dispatcher) *streamWorker {
	return &streamWorker{
		name:   name,
		disp:   d,
		in:     make(chan batch, 64),
		states: make(map[packet.StreamKey]*streamState),
	}
}

func (w *streamWorker) enqueue(b batch) {
	w.in <- b
}

func (w *streamWorker) start(ctx context.Context) {
	go w.run(ctx)
}

func (w *streamWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-w.in:
			if !ok {
				return
			}
			w.process(b)
		}
	}
}

func (w *streamWorker) process(b batch) {
	state := w.states[b.key]
	if state == nil {
		state = &streamState{key: b.key, buf: &streamBuffer{}}
		w.states[b.key] = state
	}
	state.buf.append(b.chunks)
	w.runDissectors(state)
}

// runDissectors offers the stream's accumulated bytes to its already
// selected dissector, or, if none has been chosen yet, tries each
// configured stream dissector in order until one accepts. A declining
// or insufficiently-fed candidate never advances the shared read
// cursor: it is only committed once it accepts.
func (w *streamWorker) runDissectors(state *streamState) {
	if state.selected != nil {
		trial := state.buf.clone()
		res, ok := w.invokeOne(state.selected, state.key, trial)
		if ok && res.Accepted {
			state.buf = trial
			w.publish(res)
		}
		return
	}

	for _, d := range w.disp.ctx.Dissectors {
		trial := state.buf.clone()
		res, ok := w.invokeOne(d, state.key, trial)
		if ok && res.Accepted {
			state.selected = d
			state.buf = trial
			w.publish(res)
			return
		}
	}
}

func (w *streamWorker) invokeOne(d Dissector, key packet.StreamKey, r Reader) (result Result, ok bool) {
	ctx := newContext(d.Name(), d.Handle())

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				w.disp.ctx.LogCallback(packet.LogMessage{
					Level:        packet.LogLevelError,
					Message:      fmt.Sprintf("stream dissector panic: %v", rec),
					Domain:       "stream",
					ResourceName: d.Name(),
					Script:       d.Handle(),
				})
			}
		}()

		res, err := d.Dissect(key, r, ctx)
		if err != nil {
			w.disp.ctx.LogCallback(packet.LogMessage{
				Level:        packet.LogLevelError,
				Message:      err.Error(),
				Domain:       "stream",
				ResourceName: d.Name(),
				Script:       d.Handle(),
			})
			return
		}
		result, ok = res, true
	}()

	for _, msg := range ctx.logs {
		w.disp.ctx.LogCallback(msg)
	}
	return result, ok
}

func (w *streamWorker) publish(res Result) {
	if len(res.Chunks) > 0 {
		w.disp.InsertChunks(res.Chunks)
	}
	if len(res.VirtualLayers) > 0 && w.disp.ctx.VPLayersCallback != nil {
		w.disp.ctx.VPLayersCallback(res.VirtualLayers)
	}
}
