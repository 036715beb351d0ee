// Package dissect runs the dissector chain over each packet pulled from
// the queue: a pure transformer interface (Dissector), a scratch
// Context collecting logs and stream chunks emitted during one
// invocation, and the worker pool that drives them breadth-first.
package dissect

import "github.com/kaelstrom/packetcore/internal/packet"

// Result is what a Dissector returns for one layer it chooses to
// accept. An Accepted result with no Children is legal (the dissector
// ran but produced nothing visible, e.g. it only emitted stream
// chunks).
type Result struct {
	Accepted bool
	Children []*packet.Layer
}

// Declined is the zero-cost result a dissector returns when it does not
// recognize the layer.
var Declined = Result{}

// Dissector is a pure transformer from one layer to zero or more child
// layers, optionally emitting stream chunks and log messages via ctx
// along the way. Implementations must not retain layer or ctx beyond
// the call.
type Dissector interface {
	// Name is the dissector's resource name, used in LogMessage.
	Name() string
	// Handle identifies the compiled script object backing this
	// dissector, for diagnostic correlation.
	Handle() packet.ScriptHandle
	// Dissect offers layer to the dissector. Returning a non-nil error
	// is equivalent to panicking: the worker logs it and treats the
	// layer as declined for this dissector.
	Dissect(layer *packet.Layer, ctx *Context) (Result, error)
}

// Context is handed to a single Dissector invocation. It is not safe
// for reuse across invocations or goroutines.
type Context struct {
	domain       string
	resourceName string
	script       packet.ScriptHandle
	logs         []packet.LogMessage
	chunks       []packet.StreamChunk
}

func newContext(domain, resourceName string, script packet.ScriptHandle) *Context {
	return &Context{domain: domain, resourceName: resourceName, script: script}
}

// Log records a diagnostic message against the dissector's own resource
// name and script handle, both bound when the worker created the
// context for this invocation.
func (c *Context) Log(level packet.LogLevel, message string, coords packet.SourceCoords) {
	c.logs = append(c.logs, packet.LogMessage{
		Level:        level,
		Message:      message,
		Domain:       c.domain,
		ResourceName: c.resourceName,
		Coords:       coords,
		Script:       c.script,
	})
}

// EmitChunk records a stream chunk produced while dissecting the layer.
func (c *Context) EmitChunk(chunk packet.StreamChunk) {
	c.chunks = append(c.chunks, chunk)
}
