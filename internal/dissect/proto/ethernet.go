package proto

import (
	"encoding/binary"
	"fmt"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/packet"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// Ethernet decodes Ethernet II frames, including nested 802.1Q/QinQ VLAN
// tags, and hands the payload on as a single child layer.
type Ethernet struct {
	parent string
	child  string
	handle packet.ScriptHandle
}

// NewEthernet builds an Ethernet dissector that accepts layers named
// parent and emits a child layer named parent+".eth".
func NewEthernet(parent string) *Ethernet {
	return &Ethernet{parent: parent, child: parent + ".eth", handle: packet.NewScriptHandle()}
}

// ChildName is the name this dissector gives the layers it produces.
func (e *Ethernet) ChildName() string { return e.child }

func (e *Ethernet) Name() string              { return "ethernet" }
func (e *Ethernet) Handle() packet.ScriptHandle { return e.handle }

func (e *Ethernet) Dissect(layer *packet.Layer, ctx *dissect.Context) (dissect.Result, error) {
	if layer.Name != e.parent {
		return declined()
	}
	data := layer.Payload
	if len(data) < ethernetHeaderLen {
		ctx.Log(packet.LogLevelWarn, "ethernet frame shorter than header", packet.NoCoords)
		return dissect.Result{}, ErrPacketTooShort
	}

	var dst, src [6]byte
	copy(dst[:], data[0:6])
	copy(src[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	var vlans []uint16
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			ctx.Log(packet.LogLevelWarn, "vlan tag truncated", packet.NoCoords)
			return dissect.Result{}, ErrPacketTooShort
		}
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		vlans = append(vlans, tci&0x0FFF)
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	child := packet.NewLayer(layer.Namespace, e.child, data[offset:])
	child.SetAttribute("src_mac", fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", src[0], src[1], src[2], src[3], src[4], src[5]))
	child.SetAttribute("dst_mac", fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", dst[0], dst[1], dst[2], dst[3], dst[4], dst[5]))
	child.SetAttribute("ether_type", etherType)
	if len(vlans) > 0 {
		child.SetAttribute("vlans", vlans)
	}

	return accepted(child)
}
