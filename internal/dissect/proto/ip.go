package proto

import (
	"net/netip"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/packet"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// IP decodes an IPv4 or IPv6 header and hands the payload on as a single
// child layer carrying the source/destination address and the next
// protocol number.
type IP struct {
	parent string
	child  string
	handle packet.ScriptHandle
}

// NewIP builds an IP dissector that accepts layers named parent and
// emits a child layer named parent+".ip".
func NewIP(parent string) *IP {
	return &IP{parent: parent, child: parent + ".ip", handle: packet.NewScriptHandle()}
}

// ChildName is the name this dissector gives the layers it produces.
func (p *IP) ChildName() string { return p.child }

func (p *IP) Name() string               { return "ip" }
func (p *IP) Handle() packet.ScriptHandle { return p.handle }

func (p *IP) Dissect(layer *packet.Layer, ctx *dissect.Context) (dissect.Result, error) {
	if layer.Name != p.parent {
		return declined()
	}
	data := layer.Payload
	if len(data) < 1 {
		return dissect.Result{}, ErrPacketTooShort
	}

	switch data[0] >> 4 {
	case 4:
		return p.dissectV4(layer, data, ctx)
	case 6:
		return p.dissectV6(layer, data, ctx)
	default:
		ctx.Log(packet.LogLevelDebug, "non-IP ethertype payload", packet.NoCoords)
		return declined()
	}
}

func (p *IP) dissectV4(layer *packet.Layer, data []byte, ctx *dissect.Context) (dissect.Result, error) {
	if len(data) < ipv4HeaderMinLen {
		return dissect.Result{}, ErrPacketTooShort
	}
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return dissect.Result{}, ErrPacketTooShort
	}

	srcIP, ok := netip.AddrFromSlice(data[12:16])
	if !ok {
		return dissect.Result{}, ErrPacketTooShort
	}
	dstIP, ok := netip.AddrFromSlice(data[16:20])
	if !ok {
		return dissect.Result{}, ErrPacketTooShort
	}

	child := packet.NewLayer(layer.Namespace, p.child, data[headerLen:])
	child.SetAttribute("version", 4)
	child.SetAttribute("src_ip", srcIP.String())
	child.SetAttribute("dst_ip", dstIP.String())
	child.SetAttribute("protocol", data[9])
	child.SetAttribute("ttl", data[8])
	return accepted(child)
}

func (p *IP) dissectV6(layer *packet.Layer, data []byte, ctx *dissect.Context) (dissect.Result, error) {
	if len(data) < ipv6HeaderLen {
		return dissect.Result{}, ErrPacketTooShort
	}

	srcIP, ok := netip.AddrFromSlice(data[8:24])
	if !ok {
		return dissect.Result{}, ErrPacketTooShort
	}
	dstIP, ok := netip.AddrFromSlice(data[24:40])
	if !ok {
		return dissect.Result{}, ErrPacketTooShort
	}

	child := packet.NewLayer(layer.Namespace, p.child, data[ipv6HeaderLen:])
	child.SetAttribute("version", 6)
	child.SetAttribute("src_ip", srcIP.String())
	child.SetAttribute("dst_ip", dstIP.String())
	child.SetAttribute("protocol", data[6])
	child.SetAttribute("ttl", data[7])
	// IPv6 extension header chasing is not implemented; payload is taken
	// to start immediately after the fixed header.
	return accepted(child)
}
