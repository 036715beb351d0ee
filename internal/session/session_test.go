package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kaelstrom/packetcore/internal/dissect"
	"github.com/kaelstrom/packetcore/internal/filter"
	"github.com/kaelstrom/packetcore/internal/packet"
)

type childDissector struct {
	childName string
	payload   []byte
}

func (d *childDissector) Name() string               { return "child" }
func (d *childDissector) Handle() packet.ScriptHandle { return packet.ScriptHandle{} }
func (d *childDissector) Dissect(layer *packet.Layer, ctx *dissect.Context) (dissect.Result, error) {
	if layer.Name != "n" {
		return dissect.Declined, nil
	}
	return dissect.Result{Accepted: true, Children: []*packet.Layer{
		packet.NewLayer("n", d.childName, d.payload),
	}}, nil
}

type modFilter struct {
	mod, eq uint32
}

func (f modFilter) Match(pkt *packet.Packet, ctx *filter.Context) (bool, error) {
	return pkt.Sequence()%f.mod == f.eq, nil
}

func newTestSession(t *testing.T, dissectors []dissect.Dissector) *Session {
	t.Helper()
	s := New(Config{
		Namespace:  "n",
		Threads:    3,
		Dissectors: dissectors,
		FilterScript: func(expr string) (filter.Filter, error) {
			return modFilter{mod: 2, eq: 0}, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Run(ctx)
	return s
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestEmptyStartStop(t *testing.T) {
	var statuses []Status
	s := newTestSession(t, nil)
	s.SetStatusCallback(func(st Status) { statuses = append(statuses, st) })

	assert.NoError(t, s.StartCapture())
	waitUntil(t, func() bool { return len(statuses) >= 1 })
	assert.NoError(t, s.StopCapture())
	waitUntil(t, func() bool { return len(statuses) >= 2 })

	last := statuses[len(statuses)-1]
	assert.False(t, last.Capturing)
	assert.Equal(t, uint32(0), last.Packets)
	assert.Empty(t, last.Filtered)
}

func TestSingleLayerPipelineThroughSession(t *testing.T) {
	s := newTestSession(t, []dissect.Dissector{&childDissector{childName: "n.a", payload: []byte{0x01}}})

	for i := 0; i < 3; i++ {
		pkt := packet.New(time.Now(), 1, 1)
		pkt.AddRootLayer(packet.NewLayer("n", "n", []byte{0xAA}))
		s.Analyze(pkt)
	}

	waitUntil(t, func() bool { return s.MaxSequence() == 3 })

	for seq := uint32(1); seq <= 3; seq++ {
		pkt, ok := s.Get(seq)
		assert.True(t, ok)
		assert.Len(t, pkt.RootLayers()[0].Children, 1)
		assert.Equal(t, []byte{0x01}, pkt.RootLayers()[0].Children[0].Payload)
	}
}

func TestFilterLifecycleThroughSession(t *testing.T) {
	s := newTestSession(t, nil)
	assert.NoError(t, s.AddFilter("even", "seq % 2 == 0"))

	for i := 0; i < 10; i++ {
		pkt := packet.New(time.Now(), 1, 1)
		pkt.AddRootLayer(packet.NewLayer("n", "n", nil))
		s.Analyze(pkt)
	}

	waitUntil(t, func() bool { return len(s.GetFiltered("even", 1, 11)) == 5 })

	assert.NoError(t, s.AddFilter("even", ""))
	time.Sleep(10 * time.Millisecond)
	assert.Nil(t, s.GetFiltered("even", 1, 11))
}
