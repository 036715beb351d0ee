// Package pcapsource implements the reference session.FrameSource over
// gopacket/pcap: live capture via pcap.OpenLive/BPF, offline capture via
// pcap.OpenOffline. This is the concrete stand-in for the frame source
// the core treats as an external collaborator.
package pcapsource

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket/pcap"

	"github.com/kaelstrom/packetcore/internal/packet"
)

// Source captures frames from a live interface or an offline capture
// file and hands them to the registered packet callback.
type Source struct {
	mu sync.Mutex

	iface     string
	offline   string
	promisc   bool
	snaplen   int
	bpf       string
	handle    *pcap.Handle
	callback  func(data []byte, ts time.Time, origLen, capLen int)
	stopCh    chan struct{}
	received  uint64
	dropped   uint64
	running   bool
}

// Live constructs a Source that captures from a live interface.
func Live(iface string) *Source {
	return &Source{iface: iface, snaplen: 65535}
}

// Offline constructs a Source that replays a capture file.
func Offline(path string) *Source {
	return &Source{offline: path, snaplen: 65535}
}

func (s *Source) SetPacketCallback(cb func(data []byte, ts time.Time, origLen, capLen int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

func (s *Source) SetInterface(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("pcapsource: cannot change interface while capturing")
	}
	s.iface = name
	return nil
}

func (s *Source) SetPromiscuous(promisc bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promisc = promisc
	return nil
}

func (s *Source) SetSnaplen(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return fmt.Errorf("pcapsource: snaplen must be positive")
	}
	s.snaplen = n
	return nil
}

func (s *Source) SetBPF(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bpf = expr
	if s.handle != nil {
		return s.handle.SetBPFFilter(expr)
	}
	return nil
}

func (s *Source) NetworkInterface() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iface
}

func (s *Source) Promiscuous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promisc
}

func (s *Source) Snaplen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaplen
}

// Start opens the capture handle and begins delivering frames to the
// registered callback on a background goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("pcapsource: already running")
	}

	var handle *pcap.Handle
	var err error
	if s.offline != "" {
		handle, err = pcap.OpenOffline(s.offline)
	} else {
		handle, err = pcap.OpenLive(s.iface, int32(s.snaplen), s.promisc, pcap.BlockForever)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("pcapsource: open failed: %w", err)
	}
	if s.bpf != "" {
		if err := handle.SetBPFFilter(s.bpf); err != nil {
			handle.Close()
			s.mu.Unlock()
			return fmt.Errorf("pcapsource: bpf filter rejected: %w", err)
		}
	}

	s.handle = handle
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	cb := s.callback
	s.mu.Unlock()

	go s.readLoop(handle, stopCh, cb)
	return nil
}

func (s *Source) readLoop(handle *pcap.Handle, stopCh chan struct{}, cb func([]byte, time.Time, int, int)) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		data, ci, err := handle.ReadPacketData()
		if err != nil {
			if err == io.EOF || err == pcap.NextErrorNoMorePackets {
				return
			}
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		s.received++
		s.mu.Unlock()

		if cb != nil {
			cb(data, ci.Timestamp, ci.Length, ci.CaptureLength)
		}
	}
}

// Stop closes the capture handle, ending the read loop.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	close(s.stopCh)
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	s.running = false
	return nil
}

// Stats reports packets seen/dropped since the handle was opened.
func (s *Source) Stats() packet.CaptureStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		if stats, err := s.handle.Stats(); err == nil {
			return packet.CaptureStats{
				PacketsReceived: uint64(stats.PacketsReceived),
				PacketsDropped:  uint64(stats.PacketsDropped),
			}
		}
	}
	return packet.CaptureStats{PacketsReceived: s.received, PacketsDropped: s.dropped}
}
