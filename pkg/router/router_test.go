package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

type recordingHandle struct {
	mu    sync.Mutex
	spans [][]byte
}

func (h *recordingHandle) Write(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), data...)
	h.spans = append(h.spans, cp)
}

func (h *recordingHandle) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.spans)
}

func (h *recordingHandle) last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.spans) == 0 {
		return nil
	}
	return h.spans[len(h.spans)-1]
}

func newTestRouter() *Router {
	return New(zerolog.Nop())
}

func mustPacket(t *testing.T, payload string) *paproto.Packet {
	t.Helper()
	pkt, err := paproto.Encode([]byte(payload), paproto.FromInstrument, paproto.NTPNow())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return pkt
}

func TestEveryMatchingClientReceivesExactlyOneWrite(t *testing.T) {
	r := newTestRouter()
	r.AddRoute(paproto.FromInstrument, paproto.Client, paproto.Raw)
	r.AddRoute(paproto.FromInstrument, paproto.Logger, paproto.ASCII)

	client1 := &recordingHandle{}
	client2 := &recordingHandle{}
	logger := &recordingHandle{}
	r.Register(paproto.Client, client1)
	r.Register(paproto.Client, client2)
	r.Register(paproto.Logger, logger)

	r.GotData([]*paproto.Packet{mustPacket(t, "abc123")})

	if client1.count() != 1 || client2.count() != 1 {
		t.Fatalf("expected exactly one write to each client endpoint, got %d and %d", client1.count(), client2.count())
	}
	if string(client1.last()) != "abc123" {
		t.Fatalf("expected raw payload, got %q", client1.last())
	}
	if logger.count() != 1 {
		t.Fatalf("expected exactly one write to the logger, got %d", logger.count())
	}
}

func TestAllSentinelExpandsToEveryConcreteType(t *testing.T) {
	r := newTestRouter()
	r.AddRoute(paproto.All, paproto.Datalogger, paproto.Packed)

	dl := &recordingHandle{}
	r.Register(paproto.Datalogger, dl)

	r.GotData([]*paproto.Packet{mustPacket(t, "x")})
	if dl.count() != 1 {
		t.Fatalf("expected datalogger to receive the packed packet, got %d writes", dl.count())
	}
}

func TestDeregisterStopsDelivery(t *testing.T) {
	r := newTestRouter()
	r.AddRoute(paproto.FromInstrument, paproto.Client, paproto.Raw)

	client := &recordingHandle{}
	r.Register(paproto.Client, client)
	r.GotData([]*paproto.Packet{mustPacket(t, "one")})
	if client.count() != 1 {
		t.Fatalf("expected one write before deregister, got %d", client.count())
	}

	r.Deregister(paproto.Client, client)
	r.GotData([]*paproto.Packet{mustPacket(t, "two")})
	if client.count() != 1 {
		t.Fatalf("expected no additional writes after deregister, got %d", client.count())
	}
}

func TestUnroutedPacketTypeIsDropped(t *testing.T) {
	r := newTestRouter()
	client := &recordingHandle{}
	r.Register(paproto.Client, client)

	r.GotData([]*paproto.Packet{mustPacket(t, "nobody wants this")})
	if client.count() != 0 {
		t.Fatalf("expected no writes for an unrouted packet type, got %d", client.count())
	}
}

func TestASCIIMaterializedOncePerPacket(t *testing.T) {
	r := newTestRouter()
	r.AddRoute(paproto.FromInstrument, paproto.Logger, paproto.ASCII)

	l1 := &recordingHandle{}
	l2 := &recordingHandle{}
	r.Register(paproto.Logger, l1)
	r.Register(paproto.Logger, l2)

	r.GotData([]*paproto.Packet{mustPacket(t, "hello")})

	if l1.count() != 1 || l2.count() != 1 {
		t.Fatalf("expected one ASCII write per logger, got %d and %d", l1.count(), l2.count())
	}
	if string(l1.last()) != string(l2.last()) {
		t.Fatalf("expected identical ASCII line for both loggers")
	}
}

type producerAttacherHandle struct {
	recordingHandle
	attached Producer
}

func (h *producerAttacherHandle) AttachProducer(p Producer) {
	h.attached = p
}

func TestRegisterAttachesRouterAsProducerForClientEndpoint(t *testing.T) {
	r := newTestRouter()
	h := &producerAttacherHandle{}
	r.Register(paproto.Client, h)

	if h.attached != r {
		t.Fatal("expected the router to attach itself as the client's producer")
	}
}

type countingProducer struct {
	mu                     sync.Mutex
	paused, resumed, stops int
}

func (p *countingProducer) Pause()  { p.mu.Lock(); p.paused++; p.mu.Unlock() }
func (p *countingProducer) Resume() { p.mu.Lock(); p.resumed++; p.mu.Unlock() }
func (p *countingProducer) Stop()   { p.mu.Lock(); p.stops++; p.mu.Unlock() }

func TestPauseResumeStopPropagateToRegisteredProducers(t *testing.T) {
	r := newTestRouter()
	p1 := &countingProducer{}
	p2 := &countingProducer{}
	r.RegisterProducer(p1)
	r.RegisterProducer(p2)

	r.Pause()
	r.Resume()
	r.Stop()

	for _, p := range []*countingProducer{p1, p2} {
		if p.paused != 1 || p.resumed != 1 || p.stops != 1 {
			t.Fatalf("expected one propagated call of each kind, got pause=%d resume=%d stop=%d", p.paused, p.resumed, p.stops)
		}
	}

	r.DeregisterProducer(p1)
	r.Pause()
	if p1.paused != 1 {
		t.Fatalf("expected deregistered producer to stop receiving calls, got %d pauses", p1.paused)
	}
	if p2.paused != 2 {
		t.Fatalf("expected still-registered producer to keep receiving calls, got %d pauses", p2.paused)
	}
}

func TestClientCountReflectsRegistration(t *testing.T) {
	r := newTestRouter()
	if r.ClientCount(paproto.Client) != 0 {
		t.Fatal("expected zero clients initially")
	}
	h := &recordingHandle{}
	r.Register(paproto.Client, h)
	if r.ClientCount(paproto.Client) != 1 {
		t.Fatalf("expected one client, got %d", r.ClientCount(paproto.Client))
	}
	r.Deregister(paproto.Client, h)
	if r.ClientCount(paproto.Client) != 0 {
		t.Fatalf("expected zero clients after deregister, got %d", r.ClientCount(paproto.Client))
	}
}

func TestStatsTrackRoutesClientsAndPackets(t *testing.T) {
	r := newTestRouter()
	r.AddRoute(paproto.FromInstrument, paproto.Client, paproto.Raw)
	h := &recordingHandle{}
	r.Register(paproto.Client, h)
	r.GotData([]*paproto.Packet{mustPacket(t, "abc")})
	r.Deregister(paproto.Client, h)

	snap := r.Stats()
	if snap.AddRoute != 1 {
		t.Fatalf("expected 1 route add, got %d", snap.AddRoute)
	}
	if snap.AddClient != 1 || snap.DelClient != 1 {
		t.Fatalf("expected 1 add and 1 del, got %d/%d", snap.AddClient, snap.DelClient)
	}
	if snap.PacketIn != 1 || snap.PacketOut != 1 {
		t.Fatalf("expected 1 packet in and out, got %d/%d", snap.PacketIn, snap.PacketOut)
	}
}

func TestRunLogsAndResetsOnInterval(t *testing.T) {
	r := New(zerolog.Nop(), WithStatsInterval(5*time.Millisecond))
	r.AddRoute(paproto.FromInstrument, paproto.Client, paproto.Raw)
	h := &recordingHandle{}
	r.Register(paproto.Client, h)
	r.GotData([]*paproto.Packet{mustPacket(t, "abc")})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	snap := r.Stats()
	if snap.PacketIn != 0 {
		t.Fatalf("expected plain counters reset after logAndReset ran, got %d", snap.PacketIn)
	}
}
