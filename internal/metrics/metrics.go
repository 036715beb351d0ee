// Package metrics implements Prometheus metrics for the capture
// pipeline, labeled by session namespace the way the teacher's own
// internal/metrics labels its counters by task.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packetcore_packets_queued_total",
			Help: "Total number of packets enqueued for dissection",
		},
		[]string{"namespace"},
	)
	packetsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packetcore_packets_stored_total",
			Help: "Total number of packets inserted into the store",
		},
		[]string{"namespace"},
	)
	dissectErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packetcore_dissect_errors_total",
			Help: "Total number of dissector errors",
		},
		[]string{"namespace"},
	)
	streamChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packetcore_stream_chunks_total",
			Help: "Total number of stream chunks emitted by dissectors",
		},
		[]string{"namespace"},
	)
	virtualPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packetcore_virtual_packets_total",
			Help: "Total number of virtual packets synthesized from stream dissection",
		},
		[]string{"namespace"},
	)
	filterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packetcore_filter_errors_total",
			Help: "Total number of filter evaluation errors",
		},
		[]string{"namespace"},
	)
)

// Metrics is the live counter block for one Session, bound to its
// namespace label. Every method is safe for concurrent use from any
// worker goroutine.
type Metrics struct {
	PacketsQueued  prometheus.Counter
	PacketsStored  prometheus.Counter
	DissectErrors  prometheus.Counter
	StreamChunks   prometheus.Counter
	VirtualPackets prometheus.Counter
	FilterErrors   prometheus.Counter
}

// New returns a Metrics block whose counters are labeled with namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		PacketsQueued:  packetsQueuedTotal.WithLabelValues(namespace),
		PacketsStored:  packetsStoredTotal.WithLabelValues(namespace),
		DissectErrors:  dissectErrorsTotal.WithLabelValues(namespace),
		StreamChunks:   streamChunksTotal.WithLabelValues(namespace),
		VirtualPackets: virtualPacketsTotal.WithLabelValues(namespace),
		FilterErrors:   filterErrorsTotal.WithLabelValues(namespace),
	}
}

// Snapshot reads the current counter values into an immutable Stats,
// for callers that want a point-in-time value (the CLI's status and
// replay commands) rather than a /metrics scrape.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		PacketsQueued:  readCounter(m.PacketsQueued),
		PacketsStored:  readCounter(m.PacketsStored),
		DissectErrors:  readCounter(m.DissectErrors),
		StreamChunks:   readCounter(m.StreamChunks),
		VirtualPackets: readCounter(m.VirtualPackets),
		FilterErrors:   readCounter(m.FilterErrors),
	}
}

func readCounter(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

// Stats is a point-in-time, immutable view of Metrics, safe to hand to
// another goroutine (e.g. a CLI command response).
type Stats struct {
	PacketsQueued  uint64 `json:"packets_queued"`
	PacketsStored  uint64 `json:"packets_stored"`
	DissectErrors  uint64 `json:"dissect_errors"`
	StreamChunks   uint64 `json:"stream_chunks"`
	VirtualPackets uint64 `json:"virtual_packets"`
	FilterErrors   uint64 `json:"filter_errors"`
}
