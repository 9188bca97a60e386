package router

import (
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"
)

// Snapshot is a point-in-time copy of the router's counters, keyed the way
// §3 of the spec describes ("Statistics. Counters keyed by kind").
type Snapshot struct {
	AddRoute   uint64
	AddClient  uint64
	DelClient  uint64
	PacketIn   uint64
	PacketOut  uint64
	BytesIn    uint64
	BytesOut   uint64
}

// stats holds the router's running counters, both as plain atomics (for
// periodic logging and reset, matching router.py's Counter()) and mirrored
// into a VictoriaMetrics set (for an embedder to expose over /metrics; the
// core never starts an HTTP server itself).
type stats struct {
	addRoute  atomic.Uint64
	addClient atomic.Uint64
	delClient atomic.Uint64
	packetIn  atomic.Uint64
	packetOut atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64

	set              *metrics.Set
	mAddRouteTotal   *metrics.Counter
	mAddClientTotal  *metrics.Counter
	mDelClientTotal  *metrics.Counter
	mPacketInTotal   *metrics.Counter
	mPacketOutTotal  *metrics.Counter
	mBytesInTotal    *metrics.Counter
	mBytesOutTotal   *metrics.Counter
}

func newStats() *stats {
	s := &stats{set: metrics.NewSet()}
	s.mAddRouteTotal = s.set.NewCounter(`portagent_router_routes_added_total`)
	s.mAddClientTotal = s.set.NewCounter(`portagent_router_clients_total{action="add"}`)
	s.mDelClientTotal = s.set.NewCounter(`portagent_router_clients_total{action="remove"}`)
	s.mPacketInTotal = s.set.NewCounter(`portagent_router_packets_total{direction="in"}`)
	s.mPacketOutTotal = s.set.NewCounter(`portagent_router_packets_total{direction="out"}`)
	s.mBytesInTotal = s.set.NewCounter(`portagent_router_bytes_total{direction="in"}`)
	s.mBytesOutTotal = s.set.NewCounter(`portagent_router_bytes_total{direction="out"}`)
	return s
}

// Set returns the VictoriaMetrics set backing this router's counters, for
// an embedder to register on its own metrics exporter.
func (s *stats) Set() *metrics.Set { return s.set }

// Metrics returns the VictoriaMetrics set backing r's cumulative counters,
// for an embedder to register on its own metrics exporter.
func (r *Router) Metrics() *metrics.Set { return r.stats.Set() }

func (s *stats) incAddRoute() {
	s.addRoute.Add(1)
	s.mAddRouteTotal.Inc()
}

func (s *stats) incAddClient() {
	s.addClient.Add(1)
	s.mAddClientTotal.Inc()
}

func (s *stats) incDelClient() {
	s.delClient.Add(1)
	s.mDelClientTotal.Inc()
}

func (s *stats) incPacketIn(nbytes uint64) {
	s.packetIn.Add(1)
	s.bytesIn.Add(nbytes)
	s.mPacketInTotal.Inc()
	s.mBytesInTotal.Add(int(nbytes))
}

func (s *stats) incPacketOut(nbytes uint64) {
	s.packetOut.Add(1)
	s.bytesOut.Add(nbytes)
	s.mPacketOutTotal.Inc()
	s.mBytesOutTotal.Add(int(nbytes))
}

func (s *stats) snapshot() Snapshot {
	return Snapshot{
		AddRoute:  s.addRoute.Load(),
		AddClient: s.addClient.Load(),
		DelClient: s.delClient.Load(),
		PacketIn:  s.packetIn.Load(),
		PacketOut: s.packetOut.Load(),
		BytesIn:   s.bytesIn.Load(),
		BytesOut:  s.bytesOut.Load(),
	}
}

// logAndReset emits the human-readable line router.py's log_stats produces
// and resets the plain (non-VictoriaMetrics) counters. The VictoriaMetrics
// counters are cumulative and are never reset.
func (s *stats) logAndReset(log zerolog.Logger, interval time.Duration) {
	sec := interval.Seconds()
	snap := Snapshot{
		AddRoute:  s.addRoute.Swap(0),
		AddClient: s.addClient.Swap(0),
		DelClient: s.delClient.Swap(0),
		PacketIn:  s.packetIn.Swap(0),
		PacketOut: s.packetOut.Swap(0),
		BytesIn:   s.bytesIn.Swap(0),
		BytesOut:  s.bytesOut.Swap(0),
	}
	log.Info().
		Uint64("clients_added", snap.AddClient).
		Uint64("clients_removed", snap.DelClient).
		Msg("router stats (registrations)")
	log.Info().
		Uint64("packets_in", snap.PacketIn).
		Float64("packets_in_per_sec", float64(snap.PacketIn)/sec).
		Uint64("packets_out", snap.PacketOut).
		Float64("packets_out_per_sec", float64(snap.PacketOut)/sec).
		Msg("router stats (packets)")
	log.Info().
		Uint64("bytes_in", snap.BytesIn).
		Float64("bytes_in_per_sec", float64(snap.BytesIn)/sec).
		Uint64("bytes_out", snap.BytesOut).
		Float64("bytes_out_per_sec", float64(snap.BytesOut)/sec).
		Msg("router stats (bytes)")
}
