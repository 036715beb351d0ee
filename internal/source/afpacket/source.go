// Package afpacket implements a session.FrameSource over Linux AF_PACKET
// (TPACKET_V3), a lower-overhead alternative to pcapsource's libpcap
// backend when running directly on the capture host.
package afpacket

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"github.com/kaelstrom/packetcore/internal/packet"
)

const defaultRingBufferMB = 8

// Source captures frames from a network interface through an AF_PACKET
// TPACKET_V3 ring buffer.
type Source struct {
	mu sync.Mutex

	iface     string
	promisc   bool
	snaplen   int
	bpfExpr   string
	ringBufMB int
	fanoutID  uint16
	handle    *afpacket.TPacket
	callback  func(data []byte, ts time.Time, origLen, capLen int)
	stopCh    chan struct{}
	running   bool
}

// New constructs a Source bound to iface. The ring buffer defaults to 8MB;
// callers adjust snaplen/BPF/promiscuous mode the same way they would for
// pcapsource, before calling Start.
func New(iface string) *Source {
	return &Source{iface: iface, snaplen: 65535, ringBufMB: defaultRingBufferMB}
}

// SetFanout enables PACKET_FANOUT hashing across id when multiple Sources
// share one group, spreading one interface's traffic across them.
func (s *Source) SetFanout(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanoutID = id
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
		return fmt.Errorf("afpacket: cannot change interface while capturing")
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
		return fmt.Errorf("afpacket: snaplen must be positive")
	}
	s.snaplen = n
	return nil
}

// SetBPF compiles expr against an Ethernet link type and, if a ring is
// already open, installs it immediately; otherwise it is installed on the
// next Start.
func (s *Source) SetBPF(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bpfExpr = expr
	if s.handle == nil {
		return nil
	}
	insns, err := compileBPF(expr, s.snaplen)
	if err != nil {
		return err
	}
	return s.handle.SetBPF(insns)
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

// Start opens the TPACKET_V3 ring and begins delivering frames to the
// registered callback on a background goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("afpacket: already running")
	}

	frameSize, blockSize, numBlocks, err := recomputeSize(s.ringBufMB, s.snaplen, os.Getpagesize())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("afpacket: ring sizing failed: %w", err)
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.iface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(time.Second),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("afpacket: open failed: %w", err)
	}

	if s.fanoutID != 0 {
		if err := handle.SetFanout(afpacket.FanoutHash, s.fanoutID); err != nil {
			handle.Close()
			s.mu.Unlock()
			return fmt.Errorf("afpacket: fanout rejected: %w", err)
		}
	}
	if s.bpfExpr != "" {
		insns, err := compileBPF(s.bpfExpr, s.snaplen)
		if err != nil {
			handle.Close()
			s.mu.Unlock()
			return err
		}
		if err := handle.SetBPF(insns); err != nil {
			handle.Close()
			s.mu.Unlock()
			return fmt.Errorf("afpacket: bpf filter rejected: %w", err)
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

func (s *Source) readLoop(handle *afpacket.TPacket, stopCh chan struct{}, cb func([]byte, time.Time, int, int)) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		data, ci, err := handle.ReadPacketData()
		if err != nil {
			continue
		}
		if cb != nil {
			cb(data, ci.Timestamp, ci.Length, ci.CaptureLength)
		}
	}
}

// Stop closes the ring, ending the read loop.
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

// Stats reports the ring's packet/drop counters since it was opened.
func (s *Source) Stats() packet.CaptureStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return packet.CaptureStats{}
	}
	stats, err := s.handle.Stats()
	if err != nil {
		return packet.CaptureStats{}
	}
	return packet.CaptureStats{
		PacketsReceived: uint64(stats.Packets),
		PacketsDropped:  uint64(stats.Drops),
	}
}

// compileBPF turns a libpcap filter expression into the raw BPF
// instructions TPacket.SetBPF expects. TPACKET_V3 has no expression
// parser of its own, so this borrows libpcap's compiler purely for its
// grammar and re-encodes the result for golang.org/x/net/bpf.
func compileBPF(expr string, snaplen int) ([]bpf.RawInstruction, error) {
	pcapInsns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snaplen, expr)
	if err != nil {
		return nil, fmt.Errorf("afpacket: bpf compile failed: %w", err)
	}
	insns := make([]bpf.RawInstruction, len(pcapInsns))
	for i, ins := range pcapInsns {
		insns[i] = bpf.RawInstruction{
			Op: ins.Code,
			Jt: ins.Jt,
			Jf: ins.Jf,
			K:  ins.K,
		}
	}
	return insns, nil
}
