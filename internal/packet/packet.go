// Package packet defines the data model shared by every stage of the
// capture-and-dissection pipeline: packets, layers, stream chunks and
// log messages. It has no dependency on queue, store or dissect so any
// of those packages can import it without a cycle.
package packet

import (
	"strconv"
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Packet is an ordered tree of Layers produced by dissection. Before it
// is inserted into a store its Sequence is zero and undefined; once
// inserted it is immutable and safe to share by reference across
// goroutines.
type Packet struct {
	sequence  uint32
	timestamp time.Time
	origLen   int
	capLen    int
	roots     []*Layer
}

// New builds a Packet with no layers yet attached. Callers add at least
// one root layer (typically the raw capture layer) before handing it to
// the dissector pool.
func New(timestamp time.Time, origLen, capLen int) *Packet {
	return &Packet{timestamp: timestamp, origLen: origLen, capLen: capLen}
}

// AddRootLayer appends a top-level layer, e.g. the namespace-wrapped raw
// payload a frame source hands to Session.Analyze.
func (p *Packet) AddRootLayer(l *Layer) {
	p.roots = append(p.roots, l)
}

// RootLayers returns the packet's top-level layers in insertion order.
func (p *Packet) RootLayers() []*Layer {
	return p.roots
}

// Sequence returns the sequence number assigned at store-insert time, or
// zero if the packet has not been inserted yet.
func (p *Packet) Sequence() uint32 {
	return atomic.LoadUint32(&p.sequence)
}

// AssignSequence is called exactly once, by PacketStore.Insert. It is
// exported only because store lives in a different package; callers
// outside the store package must not use it.
func (p *Packet) AssignSequence(seq uint32) {
	atomic.StoreUint32(&p.sequence, seq)
}

// Timestamp returns the capture timestamp.
func (p *Packet) Timestamp() time.Time { return p.timestamp }

// OriginalLength returns the length of the frame as seen on the wire.
func (p *Packet) OriginalLength() int { return p.origLen }

// CapturedLength returns the number of bytes actually captured.
func (p *Packet) CapturedLength() int { return p.capLen }

// Layer is a single decoded protocol level. Layers form a tree rooted at
// a Packet's root layers; Parent is purely navigational and never owns
// its child.
type Layer struct {
	Namespace  string
	Name       string
	Payload    []byte
	Attributes map[string]any
	Confidence float64
	Parent     *Layer
	Children   []*Layer
	Chunks     []StreamChunk
}

// NewLayer builds a Layer with the given fully qualified name (the
// namespace the Session was constructed with, dotted with whatever
// suffix the producing dissector chooses, e.g. "n" then "n.http").
func NewLayer(namespace, name string, payload []byte) *Layer {
	return &Layer{Namespace: namespace, Name: name, Payload: payload}
}

// AddChild appends a child layer and sets its parent back-reference.
func (l *Layer) AddChild(c *Layer) {
	c.Parent = l
	l.Children = append(l.Children, c)
}

// SetAttribute stores a key/value attribute, lazily allocating the map.
func (l *Layer) SetAttribute(key string, value any) {
	if l.Attributes == nil {
		l.Attributes = make(map[string]any)
	}
	l.Attributes[key] = value
}

// Direction distinguishes the two halves of a bidirectional stream.
type Direction int

const (
	DirectionClientToServer Direction = iota
	DirectionServerToClient
)

func (d Direction) String() string {
	if d == DirectionServerToClient {
		return "server->client"
	}
	return "client->server"
}

// StreamKey identifies one logical, totally ordered byte stream.
type StreamKey struct {
	Namespace string
	StreamID  string
	Direction Direction
}

// OrderKey totally orders chunks within a StreamKey: first by the
// originating packet's sequence number, then by an intra-packet index.
type OrderKey struct {
	OriginSeq uint32
	Index     int
}

// Less reports whether a sorts strictly before b.
func (a OrderKey) Less(b OrderKey) bool {
	if a.OriginSeq != b.OriginSeq {
		return a.OriginSeq < b.OriginSeq
	}
	return a.Index < b.Index
}

// StreamChunk is one payload fragment of a reassembled byte stream.
type StreamChunk struct {
	Key     StreamKey
	Order   OrderKey
	Payload []byte
}

// LogLevel mirrors the four severities the host callback distinguishes.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// SourceCoords locates a log message within a dissector or filter
// script's source, when one is available. All fields are optional;
// negative values mean "not present".
type SourceCoords struct {
	LineNumber    int
	StartPosition int
	EndPosition   int
	StartColumn   int
	EndColumn     int
}

// NoCoords means no source location is known: every field is -1.
var NoCoords = SourceCoords{LineNumber: -1, StartPosition: -1, EndPosition: -1, StartColumn: -1, EndColumn: -1}

// LogMessage is one diagnostic record emitted by a dissector or filter.
type LogMessage struct {
	Level        LogLevel
	Message      string
	Domain       string
	ResourceName string
	Coords       SourceCoords
	Script       ScriptHandle
}

// Key is the stable deduplication key the Session's log coalescer uses:
// two messages with the same key are considered the same error and the
// newer one replaces the older in a delivered batch.
func (m LogMessage) Key() string {
	return m.Domain + "\x00" + m.ResourceName + "\x00" + strconv.Itoa(m.Coords.LineNumber) + "\x00" + m.Message
}

// ScriptHandle is an opaque identifier for a compiled dissector or
// filter script. It stands in for the script runtime's own object
// identity, which the core never needs to understand.
type ScriptHandle uuid.UUID

// NewScriptHandle mints a fresh, process-unique handle.
func NewScriptHandle() ScriptHandle {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return ScriptHandle(id)
}

func (h ScriptHandle) String() string {
	return uuid.UUID(h).String()
}

// Device describes one capturable network interface.
type Device struct {
	ID          string
	Name        string
	Description string
	Link        string
	Loopback    bool
	Addresses   []string
}

// CaptureStats reports the frame source's own drop counters.
type CaptureStats struct {
	PacketsReceived uint64
	PacketsDropped  uint64
}
