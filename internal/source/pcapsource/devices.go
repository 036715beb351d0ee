package pcapsource

import (
	"fmt"

	"github.com/google/gopacket/pcap"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// Devices enumerates the interfaces libpcap can see on this host. It is
// the reference session.DeviceLister.
func Devices() ([]packet.Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("pcapsource: enumerate devices: %w", err)
	}

	out := make([]packet.Device, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs := make([]string, 0, len(iface.Addresses))
		for _, a := range iface.Addresses {
			if a.IP != nil {
				addrs = append(addrs, a.IP.String())
			}
		}
		out = append(out, packet.Device{
			ID:          iface.Name,
			Name:        iface.Name,
			Description: iface.Description,
			Loopback:    iface.Flags&pcap.PCAP_IF_LOOPBACK != 0,
			Addresses:   addrs,
		})
	}
	return out, nil
}

// HasPermission reports whether the process can currently open a live
// capture handle, by probing device enumeration. This is the reference
// session.PermissionChecker.
func HasPermission() bool {
	_, err := pcap.FindAllDevs()
	return err == nil
}
