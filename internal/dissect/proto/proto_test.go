package proto

import (
	"encoding/binary"
	"testing"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/packet"
)

func buildFrame(t *testing.T) []byte {
	t.Helper()
	eth := make([]byte, 14)
	copy(eth[0:6], []byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa})
	copy(eth[6:12], []byte{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb})
	binary.BigEndian.PutUint16(eth[12:14], etherTypeIPv4)

	tcp := make([]byte, 20+5)
	binary.BigEndian.PutUint16(tcp[0:2], 443)
	binary.BigEndian.PutUint16(tcp[2:4], 51000)
	tcp[12] = 5 << 4
	copy(tcp[20:], []byte("hello"))

	ip := make([]byte, 20+len(tcp))
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(len(ip)))
	ip[8] = 64
	ip[9] = protocolTCP
	copy(ip[12:16], []byte{10, 0, 0, 1})
	copy(ip[16:20], []byte{10, 0, 0, 2})
	copy(ip[20:], tcp)

	return append(eth, ip...)
}

func TestChainDissectsEthernetIPTCP(t *testing.T) {
	chain := NewChain("n")
	frame := buildFrame(t)

	root := packet.NewLayer("n", "n", frame)
	pending := []*packet.Layer{root}
	var lastTCPLayer *packet.Layer

	for len(pending) > 0 {
		layer := pending[0]
		pending = pending[1:]
		for _, d := range chain {
			result, err := d.Dissect(layer, newTestContext())
			if err != nil {
				continue
			}
			if result.Accepted {
				for _, c := range result.Children {
					layer.AddChild(c)
					pending = append(pending, c)
					if c.Name == "n.eth.ip.transport" {
						lastTCPLayer = c
					}
				}
			}
		}
	}

	if lastTCPLayer == nil {
		t.Fatal("expected a transport layer to be produced")
	}
	if string(lastTCPLayer.Payload) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", lastTCPLayer.Payload)
	}
	if lastTCPLayer.Attributes["src_port"] != uint16(443) {
		t.Fatalf("unexpected src_port: %v", lastTCPLayer.Attributes["src_port"])
	}
}

func newTestContext() *dissect.Context {
	// dissect.Context has no exported constructor; Dissect only needs a
	// non-nil *Context to call Log/EmitChunk on, both of which are safe
	// no-op-ish appends to unexported slices.
	var c dissect.Context
	return &c
}
