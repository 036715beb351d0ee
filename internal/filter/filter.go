// Package filter implements named filter worker pools, each scanning
// PacketStore with a compiled filter expression and populating a
// SequenceSet with matches.
package filter

import "github.com/kaelstrom/packetcore/internal/packet"

// Filter is a compiled filter expression. Match is evaluated against
// every packet currently in the store; a non-nil error is treated the
// same as a false match, after being logged.
type Filter interface {
	Match(pkt *packet.Packet, ctx *Context) (bool, error)
}

// Context is handed to a single Match invocation.
type Context struct {
	logs []packet.LogMessage
}

// Log records a diagnostic message against the filter group's own
// domain, under the resource name the caller passes in.
func (c *Context) Log(resourceName string, level packet.LogLevel, message string) {
	c.logs = append(c.logs, packet.LogMessage{
		Level:        level,
		Message:      message,
		Domain:       "filter",
		ResourceName: resourceName,
	})
}
