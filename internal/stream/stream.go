// Package stream implements the StreamDispatcher: it receives stream
// chunks keyed by originating packet sequence, releases them to
// per-stream workers in strict origin order, and feeds synthesized
// virtual layers back into the main packet pipeline.
package stream

import "github.com/kaelstrom/packetcore/internal/packet"

// Reader exposes the reassembled bytes of one stream to a Dissector.
// Read returns ok=false when fewer than n bytes are currently buffered;
// the dissector is expected to return and be retried once more bytes
// arrive. The dispatcher's reader always returns eof=false: it has no
// end-of-stream signal, so a stream is never reported closed.
type Reader interface {
	Read(n int) (data []byte, ok bool, eof bool)
}

// Result is what a stream Dissector returns from one invocation.
type Result struct {
	Accepted      bool
	Chunks        []packet.StreamChunk
	VirtualLayers []*packet.Layer
}

// Declined is returned by a stream dissector that does not recognize
// the stream.
var Declined = Result{}

// Dissector is the stream-oriented counterpart to dissect.Dissector: it
// is offered a stream's accumulated bytes through a Reader rather than
// a single layer's payload.
type Dissector interface {
	Name() string
	Handle() packet.ScriptHandle
	Dissect(key packet.StreamKey, r Reader, ctx *Context) (Result, error)
}

// Context collects logs emitted while a stream Dissector runs.
type Context struct {
	resourceName string
	script       packet.ScriptHandle
	logs         []packet.LogMessage
}

func newContext(resourceName string, script packet.ScriptHandle) *Context {
	return &Context{resourceName: resourceName, script: script}
}

// Log records a diagnostic message against the running dissector.
func (c *Context) Log(level packet.LogLevel, message string, coords packet.SourceCoords) {
	c.logs = append(c.logs, packet.LogMessage{
		Level:        level,
		Message:      message,
		Domain:       "stream",
		ResourceName: c.resourceName,
		Coords:       coords,
		Script:       c.script,
	})
}
