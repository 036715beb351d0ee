package control

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/session"
)

// Server accepts control connections on a Unix domain socket and
// dispatches each Request to the named Session.
type Server struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	listener net.Listener
	sockPath string
}

// NewServer builds a Server with no sessions registered yet.
func NewServer(sockPath string) *Server {
	return &Server{sessions: make(map[string]*session.Session), sockPath: sockPath}
}

// Register makes a Session reachable by namespace through the control
// plane.
func (s *Server) Register(ns string, sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ns] = sess
}

// Start begins listening on the configured Unix socket path. Any
// stale socket file left by a prior crashed daemon is removed first.
func (s *Server) Start() error {
	_ = os.Remove(s.sockPath)

	l, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("control: listen failed: %w", err)
	}
	if err := os.Chmod(s.sockPath, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("control: chmod failed: %w", err)
	}
	s.listener = l

	go s.acceptLoop()
	return nil
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.sockPath)
	return err
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		return
	}

	resp := s.dispatch(req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		slog.Error("control: failed to write response", "error", err)
	}
}

func (s *Server) dispatch(req Request) Response {
	if req.Command == CommandDevices {
		return s.devices(req)
	}

	s.mu.RLock()
	sess, ok := s.sessions[req.Namespace]
	s.mu.RUnlock()
	if !ok {
		return Response{Success: false, Message: fmt.Sprintf("no such session: %q", req.Namespace)}
	}

	switch req.Command {
	case CommandStart:
		if err := sess.StartCapture(); err != nil {
			return Response{Success: false, Message: err.Error()}
		}
		return Response{Success: true}
	case CommandStop:
		if err := sess.StopCapture(); err != nil {
			return Response{Success: false, Message: err.Error()}
		}
		return Response{Success: true}
	case CommandStatus:
		return s.status(sess)
	case CommandFilterAdd:
		return s.filterAdd(sess, req)
	case CommandFilterRM:
		if err := sess.AddFilter(req.Args["name"], ""); err != nil {
			return Response{Success: false, Message: err.Error()}
		}
		return Response{Success: true}
	case CommandGetFiltered:
		return s.getFiltered(sess, req)
	default:
		return Response{Success: false, Message: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

func (s *Server) status(sess *session.Session) Response {
	stats := sess.Stats()
	return Response{
		Success: true,
		Status: &StatusPayload{
			Capturing: sess.Capturing(),
			Packets:   sess.MaxSequence(),
			Filtered:  sess.FilteredSizes(),
		},
		Stats: map[string]uint64{
			"packets_queued":  stats.PacketsQueued,
			"packets_stored":  stats.PacketsStored,
			"dissect_errors":  stats.DissectErrors,
			"stream_chunks":   stats.StreamChunks,
			"virtual_packets": stats.VirtualPackets,
			"filter_errors":   stats.FilterErrors,
		},
	}
}

func (s *Server) filterAdd(sess *session.Session, req Request) Response {
	name := req.Args["name"]
	expr := req.Args["expr"]
	if name == "" {
		return Response{Success: false, Message: "filter-add requires args.name"}
	}
	if err := sess.AddFilter(name, expr); err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true}
}

func (s *Server) getFiltered(sess *session.Session, req Request) Response {
	name := req.Args["name"]
	start, _ := strconv.ParseUint(req.Args["start"], 10, 32)
	end, _ := strconv.ParseUint(req.Args["end"], 10, 32)
	if end == 0 {
		end = uint64(sess.MaxSequence()) + 1
	}
	return Response{Success: true, Filter: sess.GetFiltered(name, uint32(start), uint32(end))}
}

func (s *Server) devices(req Request) Response {
	s.mu.RLock()
	var any *session.Session
	for _, sess := range s.sessions {
		any = sess
		break
	}
	s.mu.RUnlock()
	if any == nil {
		return Response{Success: true}
	}
	devices, err := any.Devices()
	if err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	out := make([]DevicePayload, 0, len(devices))
	for _, d := range devices {
		out = append(out, devicePayload(d))
	}
	return Response{Success: true, Devices: out}
}

func devicePayload(d packet.Device) DevicePayload {
	return DevicePayload{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Loopback:    d.Loopback,
		Addresses:   d.Addresses,
	}
}
