package proto

import (
	"encoding/binary"
	"fmt"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/packet"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20

	protocolTCP = 6
	protocolUDP = 17
)

// Transport decodes the TCP/UDP header riding on an IP layer. TCP
// payloads are also emitted as a stream chunk, keyed by the 4-tuple, so
// a stream.Dissector can reassemble the byte stream across packets.
type Transport struct {
	parent string
	child  string
	handle packet.ScriptHandle
}

// NewTransport builds a Transport dissector that accepts layers named
// parent and emits a child layer named parent+".transport" for both TCP
// and UDP; the "protocol" attribute tells the two apart.
func NewTransport(parent string) *Transport {
	return &Transport{parent: parent, child: parent + ".transport", handle: packet.NewScriptHandle()}
}

// ChildName is the name this dissector gives the layers it produces.
func (t *Transport) ChildName() string { return t.child }

func (t *Transport) Name() string               { return "transport" }
func (t *Transport) Handle() packet.ScriptHandle { return t.handle }

func (t *Transport) Dissect(layer *packet.Layer, ctx *dissect.Context) (dissect.Result, error) {
	if layer.Name != t.parent {
		return declined()
	}
	proto, _ := layer.Attributes["protocol"].(byte)
	switch proto {
	case protocolTCP:
		return t.dissectTCP(layer, ctx)
	case protocolUDP:
		return t.dissectUDP(layer, ctx)
	default:
		ctx.Log(packet.LogLevelDebug, fmt.Sprintf("unsupported transport protocol %d", proto), packet.NoCoords)
		return declined()
	}
}

func (t *Transport) dissectUDP(layer *packet.Layer, ctx *dissect.Context) (dissect.Result, error) {
	data := layer.Payload
	if len(data) < udpHeaderLen {
		return dissect.Result{}, ErrPacketTooShort
	}
	srcPort := binary.BigEndian.Uint16(data[0:2])
	dstPort := binary.BigEndian.Uint16(data[2:4])

	child := packet.NewLayer(layer.Namespace, t.child, data[udpHeaderLen:])
	child.SetAttribute("protocol", "udp")
	child.SetAttribute("src_port", srcPort)
	child.SetAttribute("dst_port", dstPort)
	return accepted(child)
}

func (t *Transport) dissectTCP(layer *packet.Layer, ctx *dissect.Context) (dissect.Result, error) {
	data := layer.Payload
	if len(data) < tcpHeaderMinLen {
		return dissect.Result{}, ErrPacketTooShort
	}
	srcPort := binary.BigEndian.Uint16(data[0:2])
	dstPort := binary.BigEndian.Uint16(data[2:4])

	dataOffset := uint8(data[12] >> 4)
	headerLen := int(dataOffset) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return dissect.Result{}, ErrPacketTooShort
	}
	flags := data[13] & 0x3F

	child := packet.NewLayer(layer.Namespace, t.child, data[headerLen:])
	child.SetAttribute("protocol", "tcp")
	child.SetAttribute("src_port", srcPort)
	child.SetAttribute("dst_port", dstPort)
	child.SetAttribute("tcp_flags", flags)

	streamID := fmt.Sprintf("%v:%d-%v:%d", layer.Attributes["src_ip"], srcPort, layer.Attributes["dst_ip"], dstPort)
	// The direction is a heuristic, not authoritative: the endpoint with
	// the lower port is taken to be the server.
	direction := packet.DirectionClientToServer
	if srcPort < dstPort {
		direction = packet.DirectionServerToClient
	}
	if payload := data[headerLen:]; len(payload) > 0 {
		ctx.EmitChunk(packet.StreamChunk{
			Key: packet.StreamKey{
				Namespace: layer.Namespace,
				StreamID:  streamID,
				Direction: direction,
			},
			// OriginSeq is filled in by the stream dispatcher once the
			// packet's store sequence is known.
			Order:   packet.OrderKey{Index: 0},
			Payload: payload,
		})
	}

	return accepted(child)
}
