// Package router implements the port agent's packet-routing plane: a
// routing table of (packet type -> endpoint type, format) rules and a
// per-endpoint-type client registry, fanning out every packet accepted via
// GotData to each matching, currently-registered client.
//
// Grounded on ooi_port_agent/router.py, adapted from Twisted's single
// reactor thread to a mutex-guarded registry (the idiom this pack's
// network daemons use for shared connection state, e.g.
// pkg/nspkt/listener.go's mu sync.Mutex over its monitor/wait-for-reply
// maps in the teacher repo).
package router

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// ClientHandle is anything the router can hand a pre-formatted, already
// materialized message to. Implementations must not block significantly;
// the write should enqueue into the underlying transport's own buffer.
type ClientHandle interface {
	Write(data []byte)
}

// Producer is the pause/resume/stop capability the router exposes to a
// registered driver connection's transport, and expects from any upstream
// data source (datalog replayer, background reader) that registers with
// RegisterProducer.
type Producer interface {
	Pause()
	Resume()
	Stop()
}

// ProducerAttacher is optionally implemented by a ClientHandle. When a
// handle is registered under EndpointType Client, and it implements this
// interface, the router attaches itself as that connection's producer so
// the connection can propagate backpressure via Pause/Resume/Stop.
type ProducerAttacher interface {
	AttachProducer(p Producer)
}

type routeKey struct {
	endpoint paproto.EndpointType
	format   paproto.Format
}

// Router routes packets to registered clients by type and tracks routing,
// registration, and throughput statistics.
type Router struct {
	log           zerolog.Logger
	statsInterval time.Duration

	mu        sync.Mutex
	routes    map[paproto.PacketType]map[routeKey]struct{}
	clients   map[paproto.EndpointType]map[ClientHandle]struct{}
	producers map[Producer]struct{}

	stats *stats
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithStatsInterval overrides the default 10s statistics logging interval.
func WithStatsInterval(d time.Duration) Option {
	return func(r *Router) { r.statsInterval = d }
}

// New creates a Router with empty routes and client sets.
func New(log zerolog.Logger, opts ...Option) *Router {
	r := &Router{
		log:           log.With().Str("component", "router").Logger(),
		statsInterval: 10 * time.Second,
		routes:        make(map[paproto.PacketType]map[routeKey]struct{}),
		clients:       make(map[paproto.EndpointType]map[ClientHandle]struct{}),
		producers:     make(map[Producer]struct{}),
		stats:         newStats(),
	}
	for _, pt := range paproto.ConcretePacketTypes {
		r.routes[pt] = make(map[routeKey]struct{})
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run logs and resets statistics every statsInterval until ctx is canceled.
// It is safe to omit calling Run entirely (statistics simply accumulate).
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.stats.logAndReset(r.log, r.statsInterval)
		}
	}
}

// AddRoute registers that packets of packetType should be delivered to every
// client of endpointType, materialized in format. A packetType of
// paproto.All expands into one rule per concrete packet type. Duplicate
// routes are idempotent.
func (r *Router) AddRoute(packetType paproto.PacketType, endpointType paproto.EndpointType, format paproto.Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := routeKey{endpoint: endpointType, format: format}
	if packetType == paproto.All {
		for _, pt := range paproto.ConcretePacketTypes {
			r.routes[pt][key] = struct{}{}
		}
		r.log.Debug().Str("packet_type", "ALL").Str("endpoint", string(endpointType)).Str("format", format.String()).Msg("add route")
	} else {
		r.routes[packetType][key] = struct{}{}
		r.log.Debug().Str("packet_type", packetType.String()).Str("endpoint", string(endpointType)).Str("format", format.String()).Msg("add route")
	}
	r.stats.incAddRoute()
}

// Register adds handle to the client set for endpointType. If endpointType
// is Client and handle implements ProducerAttacher, the router attaches
// itself as that connection's producer.
func (r *Router) Register(endpointType paproto.EndpointType, handle ClientHandle) {
	r.mu.Lock()
	if r.clients[endpointType] == nil {
		r.clients[endpointType] = make(map[ClientHandle]struct{})
	}
	r.clients[endpointType][handle] = struct{}{}
	r.stats.incAddClient()
	r.mu.Unlock()

	r.log.Info().Str("endpoint", string(endpointType)).Msg("register client")

	if endpointType == paproto.Client {
		if pa, ok := handle.(ProducerAttacher); ok {
			pa.AttachProducer(r)
		}
	}
}

// Deregister removes handle from the client set for endpointType. Writes to
// a deregistered handle are simply never attempted again; in-flight writes
// already dispatched are not retracted.
func (r *Router) Deregister(endpointType paproto.EndpointType, handle ClientHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients[endpointType], handle)
	r.stats.incDelClient()
	r.log.Info().Str("endpoint", string(endpointType)).Msg("deregister client")
}

// GotData is the single fan-out entry point: for packet, every
// (endpointType, format) rule registered for its type is resolved against
// the live client set and each matching client receives exactly one write.
// Safe to call concurrently from multiple connection goroutines.
func (r *Router) GotData(packets []*paproto.Packet) {
	for _, pkt := range packets {
		r.gotOne(pkt)
	}
}

func (r *Router) gotOne(pkt *paproto.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.incPacketIn(uint64(pkt.Header.PacketSize))

	rules := r.routes[pkt.Header.PacketType]
	if len(rules) == 0 {
		return
	}

	var (
		rawBytes   = pkt.Bytes()
		payload    = pkt.Payload
		asciiLine  string
		asciiReady bool
	)

	for key := range rules {
		clients := r.clients[key.endpoint]
		if len(clients) == 0 {
			continue
		}
		var data []byte
		switch key.format {
		case paproto.Raw:
			data = payload
		case paproto.Packed:
			data = rawBytes
		case paproto.ASCII:
			if !asciiReady {
				asciiLine = pkt.LogString() + "\n"
				asciiReady = true
			}
			data = []byte(asciiLine)
		}
		for client := range clients {
			client.Write(data)
			r.stats.incPacketOut(uint64(len(data)))
		}
	}
}

// RegisterProducer adds an upstream data source (e.g. a datalog replayer)
// that will be paused/resumed/stopped in lockstep with driver backpressure.
func (r *Router) RegisterProducer(p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p] = struct{}{}
}

// DeregisterProducer removes an upstream data source.
func (r *Router) DeregisterProducer(p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, p)
}

// Pause propagates a pause signal to every registered producer. Register
// hands the router, as a Producer, to a Client handle that implements
// ProducerAttacher; endpoint.Conn does not implement it, so a full driver
// socket does not call Pause.
func (r *Router) Pause() {
	r.mu.Lock()
	producers := r.snapshotProducers()
	r.mu.Unlock()
	for p := range producers {
		p.Pause()
	}
}

// Resume propagates a resume signal to every registered producer.
func (r *Router) Resume() {
	r.mu.Lock()
	producers := r.snapshotProducers()
	r.mu.Unlock()
	for p := range producers {
		p.Resume()
	}
}

// Stop propagates a stop signal to every registered producer, used during
// agent shutdown.
func (r *Router) Stop() {
	r.mu.Lock()
	producers := r.snapshotProducers()
	r.mu.Unlock()
	for p := range producers {
		p.Stop()
	}
}

func (r *Router) snapshotProducers() map[Producer]struct{} {
	out := make(map[Producer]struct{}, len(r.producers))
	for p := range r.producers {
		out[p] = struct{}{}
	}
	return out
}

// ClientCount returns the number of handles currently registered under
// endpointType. The datalog replayers use it to wait for a connected driver.
func (r *Router) ClientCount(endpointType paproto.EndpointType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients[endpointType])
}

// Stats returns a snapshot of the router's running statistics.
func (r *Router) Stats() Snapshot {
	return r.stats.snapshot()
}
