// Package session wires PacketQueue, PacketStore, the dissector worker
// pool, the StreamDispatcher and named FilterWorkerGroups into a single
// running pipeline, and exposes the small control surface a host
// (CLI, live-view bridge, or anything else) drives it through.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tevino/abool"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/filter"
	"github.com/kaelstrom/packetcore/internal/metrics"
	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/queue"
	"github.com/kaelstrom/packetcore/internal/store"
	"github.com/kaelstrom/packetcore/internal/stream"
)

// FrameSource is the external collaborator that turns real or replayed
// traffic into raw frames. Session drives it through this interface and
// never imports a concrete capture implementation.
type FrameSource interface {
	// SetPacketCallback registers the function Session calls for every
	// captured frame; the source must call it at most once per frame,
	// after Start and before the corresponding Stop returns.
	SetPacketCallback(func(data []byte, timestamp time.Time, origLen, capLen int))
	Start() error
	Stop() error
	SetInterface(name string) error
	SetPromiscuous(promisc bool) error
	SetSnaplen(n int) error
	SetBPF(expr string) error
	NetworkInterface() string
	Promiscuous() bool
	Snaplen() int
	Stats() packet.CaptureStats
}

// DeviceLister enumerates capturable interfaces, independent of any one
// FrameSource instance.
type DeviceLister func() ([]packet.Device, error)

// PermissionChecker probes whether the process has capture permission.
type PermissionChecker func() bool

// FilterCompiler turns a filter expression string into a compiled
// Filter. The expression language itself is an external collaborator;
// the Session only ever consumes the compiled form.
type FilterCompiler func(expr string) (filter.Filter, error)

// Status is the coalesced payload delivered to StatusCallback.
type Status struct {
	Capturing bool
	Packets   uint32
	Filtered  map[string]uint32
}

// Config configures a new Session. Threads is the configured worker
// count before the Session's own "leave a core for the host" cap is
// applied.
type Config struct {
	Namespace        string
	Threads          int
	Dissectors       []dissect.Dissector
	StreamDissectors []stream.Dissector
	Source           FrameSource
	Devices          DeviceLister
	Permission       PermissionChecker
	FilterScript     FilterCompiler
}

// errNoCompiler is returned by AddFilter when a non-empty expression is
// given but the Session was built without a FilterCompiler.
var errNoCompiler = errors.New("session: no filter compiler configured")

// Session owns the whole pipeline for one capture namespace.
type Session struct {
	namespace string
	threads   int

	queue      *queue.Queue
	store      *store.Store
	dissect    *dissect.Pool
	dispatcher *stream.Dispatcher
	filters    *filter.Manager

	source     FrameSource
	devices    DeviceLister
	permission PermissionChecker
	compiler   FilterCompiler

	capturing *abool.AtomicBool
	metrics   *metrics.Metrics

	statusBox *mailbox
	logBox    *logMailbox

	statusMu sync.RWMutex
	statusCb func(Status)
	logCb    func([]packet.LogMessage)

	runCtx    context.Context
	runCancel context.CancelFunc
}

// New builds and wires a Session but does not start capture; call Run
// to start the worker pools, then StartCapture to begin pulling frames
// from the configured FrameSource.
func New(cfg Config) *Session {
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	threads = threads - 1
	if threads < 1 {
		threads = 1
	}

	s := &Session{
		namespace:  cfg.Namespace,
		threads:    threads,
		queue:      queue.New(),
		store:      store.New(),
		source:     cfg.Source,
		devices:    cfg.Devices,
		permission: cfg.Permission,
		compiler:   cfg.FilterScript,
		capturing:  abool.New(),
		metrics:    metrics.New(cfg.Namespace),
		statusBox:  newMailbox(),
		logBox:     newLogMailbox(),
	}

	s.dispatcher = stream.New(&stream.DispatcherContext{
		Workers:    threads,
		Dissectors: cfg.StreamDissectors,
		LogCallback: s.log,
		VPLayersCallback: func(layers []*packet.Layer) {
			s.metrics.VirtualPackets.Add(float64(len(layers)))
			s.injectVirtualLayers(layers)
		},
	})

	s.dissect = dissect.NewPool(&dissect.WorkerContext{
		Queue:      s.queue,
		Dissectors: cfg.Dissectors,
		PacketCallback: func(p *packet.Packet) {
			s.metrics.PacketsStored.Add(1)
			s.store.Insert(p)
		},
		StreamsCallback: func(originSeq uint32, chunks []packet.StreamChunk) {
			s.metrics.StreamChunks.Add(float64(len(chunks)))
			s.dispatcher.Insert(originSeq, chunks)
		},
		LogCallback: s.log,
	}, threads)

	s.filters = filter.NewManager(s.store, threads, s.log, s.raiseStatus)
	s.store.AddChangeHandler(func(uint32) { s.raiseStatus() })

	if cfg.Source != nil {
		cfg.Source.SetPacketCallback(s.analyzeRaw)
	}

	return s
}

// Run launches every worker pool and the host signal readers. It does
// not start capture; call StartCapture for that.
func (s *Session) Run(ctx context.Context) {
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.dissect.Start(s.runCtx)
	s.dispatcher.Start(s.runCtx)
	go s.readStatus(s.runCtx)
	go s.readLog(s.runCtx)
}

// Shutdown closes the packet queue (the global stop signal for the
// dissection pipeline) and cancels every pool's context.
func (s *Session) Shutdown() {
	s.queue.Close()
	if s.runCancel != nil {
		s.runCancel()
	}
}

// SetStatusCallback installs the handler invoked at most once per
// coalescing window with the latest Status.
func (s *Session) SetStatusCallback(cb func(Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.statusCb = cb
}

// SetLogCallback installs the handler invoked at most once per
// coalescing window with the batch of deduplicated LogMessages.
func (s *Session) SetLogCallback(cb func([]packet.LogMessage)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.logCb = cb
}

func (s *Session) readStatus(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.statusBox.C():
			s.statusMu.RLock()
			cb := s.statusCb
			s.statusMu.RUnlock()
			if cb != nil {
				cb(s.snapshotStatus())
			}
		}
	}
}

func (s *Session) readLog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.logBox.C():
			batch := s.logBox.Drain()
			if len(batch) == 0 {
				continue
			}
			s.statusMu.RLock()
			cb := s.logCb
			s.statusMu.RUnlock()
			if cb != nil {
				cb(batch)
			}
		}
	}
}

func (s *Session) raiseStatus() {
	s.statusBox.Raise()
}

func (s *Session) log(msg packet.LogMessage) {
	if msg.Level == packet.LogLevelError {
		switch msg.Domain {
		case "dissect":
			s.metrics.DissectErrors.Add(1)
		case "filter":
			s.metrics.FilterErrors.Add(1)
		}
	}
	s.logBox.Add(msg)
}

func (s *Session) snapshotStatus() Status {
	return Status{
		Capturing: s.capturing.IsSet(),
		Packets:   s.store.MaxSequence(),
		Filtered:  s.filters.Sizes(),
	}
}

// analyzeRaw is the FrameSource's packet callback: it wraps the raw
// frame in a single root layer named after the Session's namespace and
// enqueues it for dissection.
func (s *Session) analyzeRaw(data []byte, ts time.Time, origLen, capLen int) {
	pkt := packet.New(ts, origLen, capLen)
	pkt.AddRootLayer(packet.NewLayer(s.namespace, s.namespace, data))
	s.metrics.PacketsQueued.Add(1)
	s.queue.Push(pkt)
}

// Analyze accepts an already-layered packet directly, for callers
// (tests, offline replays) that construct packets themselves instead of
// going through a FrameSource.
func (s *Session) Analyze(pkt *packet.Packet) {
	s.metrics.PacketsQueued.Add(1)
	s.queue.Push(pkt)
}

// injectVirtualLayers wraps each synthesized layer in a new Packet and
// re-enters it at the front of the main pipeline, exactly like any
// other captured frame.
func (s *Session) injectVirtualLayers(layers []*packet.Layer) {
	for _, l := range layers {
		pkt := packet.New(time.Now(), len(l.Payload), len(l.Payload))
		pkt.AddRootLayer(l)
		s.queue.Push(pkt)
	}
}

// --- Control surface -------------------------------------------------

func (s *Session) SetInterface(name string) error {
	if s.source == nil {
		return nil
	}
	return s.source.SetInterface(name)
}

func (s *Session) SetPromiscuous(promisc bool) error {
	if s.source == nil {
		return nil
	}
	return s.source.SetPromiscuous(promisc)
}

func (s *Session) SetSnaplen(n int) error {
	if s.source == nil {
		return nil
	}
	return s.source.SetSnaplen(n)
}

func (s *Session) SetBPF(expr string) error {
	if s.source == nil {
		return nil
	}
	return s.source.SetBPF(expr)
}

// StartCapture starts the frame source and emits a status change.
func (s *Session) StartCapture() error {
	if s.source != nil {
		if err := s.source.Start(); err != nil {
			s.log(packet.LogMessage{
				Level:        packet.LogLevelError,
				Message:      err.Error(),
				Domain:       "source",
				ResourceName: s.namespace,
			})
			return err
		}
	}
	s.capturing.Set()
	s.raiseStatus()
	return nil
}

// StopCapture stops the frame source and emits a status change.
// In-flight packets continue through the pipeline.
func (s *Session) StopCapture() error {
	var err error
	if s.source != nil {
		err = s.source.Stop()
	}
	s.capturing.UnSet()
	s.raiseStatus()
	return err
}

// AddFilter installs or replaces the named filter group, compiling expr
// with the configured FilterCompiler. An empty expr removes the group.
func (s *Session) AddFilter(name, expr string) error {
	if expr == "" {
		s.filters.AddFilter(s.runCtx, name, nil)
		return nil
	}
	if s.compiler == nil {
		return errNoCompiler
	}
	f, err := s.compiler(expr)
	if err != nil {
		return err
	}
	s.filters.AddFilter(s.runCtx, name, f)
	return nil
}

// Get returns the stored packet at seq, if any.
func (s *Session) Get(seq uint32) (*packet.Packet, bool) {
	return s.store.Get(seq)
}

// GetFiltered returns the sequence numbers in [start, end) matched by
// the named filter group.
func (s *Session) GetFiltered(name string, start, end uint32) []uint32 {
	return s.filters.GetFiltered(name, start, end)
}

// FilteredSizes returns the current match count of every active filter
// group, keyed by name.
func (s *Session) FilteredSizes() map[string]uint32 {
	return s.filters.Sizes()
}

// Namespace returns the namespace this Session was constructed with.
func (s *Session) Namespace() string { return s.namespace }

// Devices enumerates capturable interfaces via the configured lister.
func (s *Session) Devices() ([]packet.Device, error) {
	if s.devices == nil {
		return nil, nil
	}
	return s.devices()
}

// PermissionCheck reports whether the process can capture traffic.
func (s *Session) PermissionCheck() bool {
	if s.permission == nil {
		return true
	}
	return s.permission()
}

// Capturing reports whether capture is currently active.
func (s *Session) Capturing() bool { return s.capturing.IsSet() }

// MaxSequence reports the store's current packet count.
func (s *Session) MaxSequence() uint32 { return s.store.MaxSequence() }

// Stats returns a point-in-time snapshot of the Session's counters.
func (s *Session) Stats() metrics.Stats { return s.metrics.Snapshot() }
