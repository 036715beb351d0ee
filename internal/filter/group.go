package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/tevino/abool"
	uatomic "go.uber.org/atomic"

	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/store"
)

const defaultBatchSize = 64

// Group is a named pool of workers cooperatively scanning a Store with
// a single compiled Filter, populating a SequenceSet with the matching
// sequence numbers.
type Group struct {
	name      string
	store     *store.Store
	filter    Filter
	result    *store.SequenceSet
	cancel    *abool.AtomicBool
	logCb     func(packet.LogMessage)
	workers   int
	batchSize uint32
	claim     uatomic.Uint32
}

func newGroup(name string, st *store.Store, f Filter, workers int, logCb func(packet.LogMessage), onResultChange func()) *Group {
	if workers < 1 {
		workers = 1
	}
	g := &Group{
		name:      name,
		store:     st,
		filter:    f,
		result:    store.NewSequenceSet(),
		cancel:    abool.New(),
		logCb:     logCb,
		workers:   workers,
		batchSize: defaultBatchSize,
	}
	g.claim.Store(1)
	if onResultChange != nil {
		g.result.AddChangeHandler(func(uint32) { onResultChange() })
	}
	return g
}

// Result exposes the group's SequenceSet for read access.
func (g *Group) Result() *store.SequenceSet { return g.result }

func (g *Group) start(ctx context.Context) {
	for i := 0; i < g.workers; i++ {
		go g.run(ctx)
	}
}

// run is one worker's loop: claim a bounded, contiguous range of
// sequence numbers via CAS on the shared counter, evaluate the filter
// over each, then yield the counter back for the next claimant. When
// the claim pointer catches up with the store's current frontier, the
// worker parks on the store's change condition instead of busy-polling.
func (g *Group) run(ctx context.Context) {
	for {
		if g.cancel.IsSet() || ctx.Err() != nil {
			return
		}

		maxSeq := g.store.MaxSequence()
		start := g.claim.Load()
		if start > maxSeq {
			g.store.WaitForChange(ctx, maxSeq)
			continue
		}

		end := start + g.batchSize
		if end > maxSeq+1 {
			end = maxSeq + 1
		}
		if !g.claim.CompareAndSwap(start, end) {
			continue
		}

		for seq := start; seq < end; seq++ {
			if g.cancel.IsSet() {
				return
			}
			pkt, ok := g.store.Get(seq)
			if !ok {
				continue
			}

			fctx := &Context{}
			matched, err := g.safeMatch(pkt, fctx)
			for _, msg := range fctx.logs {
				g.logCb(msg)
			}
			if err != nil {
				g.logCb(packet.LogMessage{
					Level:        packet.LogLevelError,
					Message:      err.Error(),
					Domain:       "filter",
					ResourceName: g.name,
				})
				continue
			}

			if g.cancel.IsSet() {
				return
			}
			if matched {
				g.result.Insert(seq)
			}
		}
	}
}

func (g *Group) safeMatch(pkt *packet.Packet, ctx *Context) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("filter panic: %v", r)
		}
	}()
	return g.filter.Match(pkt, ctx)
}

// Manager owns every named Group for one Session. Replacing a group
// under an existing name and reading it (GetFiltered) share the same
// lock, so no reader ever observes a half-replaced group: the old
// group's cancellation flag is flipped, it is removed from the map,
// and only then is the new group constructed and installed.
type Manager struct {
	mu     sync.RWMutex
	groups map[string]*Group

	store          *store.Store
	workers        int
	logCb          func(packet.LogMessage)
	onResultChange func()
}

// NewManager builds an empty Manager bound to a Store. onResultChange,
// if non-nil, is invoked (from the inserting filter worker's goroutine)
// every time any group's SequenceSet gains a new sequence, so a Session
// can fold it into its coalesced status signal.
func NewManager(st *store.Store, workersPerGroup int, logCallback func(packet.LogMessage), onResultChange func()) *Manager {
	return &Manager{
		groups:         make(map[string]*Group),
		store:          st,
		workers:        workersPerGroup,
		logCb:          logCallback,
		onResultChange: onResultChange,
	}
}

// AddFilter installs or replaces the group named by name. Passing a nil
// Filter removes the group entirely, matching the "empty expression"
// removal semantics of the control surface.
func (m *Manager) AddFilter(ctx context.Context, name string, f Filter) {
	m.mu.Lock()
	if old, ok := m.groups[name]; ok {
		old.cancel.Set()
		delete(m.groups, name)
	}
	if f == nil {
		m.mu.Unlock()
		return
	}
	g := newGroup(name, m.store, f, m.workers, m.logCb, m.onResultChange)
	m.groups[name] = g
	m.mu.Unlock()

	g.start(ctx)
}

// GetFiltered returns the matching sequence numbers in [start, end) for
// the named group, or nil if no such group exists.
func (m *Manager) GetFiltered(name string, start, end uint32) []uint32 {
	m.mu.RLock()
	g, ok := m.groups[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return g.result.Range(start, end)
}

// Sizes returns the current match count of every active group, keyed
// by name, for use in the Session status payload.
func (m *Manager) Sizes() map[string]uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint32, len(m.groups))
	for name, g := range m.groups {
		out[name] = g.result.Size()
	}
	return out
}
