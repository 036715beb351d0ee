// Package proto provides the reference dissector chain: Ethernet, IP and
// TCP/UDP decoders built directly on the wire formats, wired together by
// layer name rather than a generic protocol registry. A Session assembles
// them with NewChain and installs the result as its Config.Dissectors.
package proto

import (
	"errors"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/packet"
)

// ErrPacketTooShort is returned when a layer's payload is too small to
// hold a complete header of the kind being decoded.
var ErrPacketTooShort = errors.New("proto: packet too short")

// ErrUnsupportedProto names an unsupported protocol. The dissectors in
// this package do not return it: they decline a layer whose IP version
// or transport protocol they do not understand.
var ErrUnsupportedProto = errors.New("proto: unsupported protocol")

// NewChain builds the standard Ethernet -> IP -> TCP/UDP dissector chain
// rooted at rootName, the layer name a FrameSource's frames arrive under
// (typically the Session's namespace).
func NewChain(rootName string) []dissect.Dissector {
	eth := NewEthernet(rootName)
	ip := NewIP(eth.ChildName())
	transport := NewTransport(ip.ChildName())
	return []dissect.Dissector{eth, ip, transport}
}

func declined() (dissect.Result, error) { return dissect.Declined, nil }

func accepted(children ...*packet.Layer) (dissect.Result, error) {
	return dissect.Result{Accepted: true, Children: children}, nil
}
