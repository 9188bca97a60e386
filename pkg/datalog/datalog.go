// Package datalog implements the three datalog replayers (C8): binary
// concatenated-packet replay, Digi-ASCII <OOI-TS ...> record replay, and
// fixed 1024-byte chunky replay. All three share a skeleton — wait for at
// least one driver to connect, then process file contents one unit at a
// time, yielding between units so packets are actually delivered rather
// than buffered until EOF — and register with the router as a Producer, so
// that the router's Pause/Resume/Stop reach them. The driver connections in
// pkg/endpoint do not call Pause, so driver backpressure does not pause
// replay.
//
// Grounded on ooi_port_agent/agents.py's DatalogReadingPortAgent and its
// DigiDatalogAsciiPortAgent/ChunkyDatalogPortAgent subclasses, adapted from
// Twisted's LoopingCall to a single goroutine per replayer driven by a
// pause/resume-aware control loop.
package datalog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
	"github.com/oceanobs/portagent/pkg/router"
)

// Router is the subset of *router.Router a replayer needs. Defined locally
// so tests can supply a fake, matching the pattern in pkg/endpoint.
type Router interface {
	GotData(packets []*paproto.Packet)
	RegisterProducer(p router.Producer)
	DeregisterProducer(p router.Producer)
	ClientCount(endpointType paproto.EndpointType) int
}

// clientPollInterval is how often a replayer checks for a connected driver
// before it starts emitting, matching agents.py's reactor.callLater poll
// against self._client_count.
const clientPollInterval = 100 * time.Millisecond

// interUnitDelay is the pause between successive units of work (one
// packet, one record, one chunk), giving the reactor's goroutines a chance
// to actually flush writes instead of free-running until EOF.
const interUnitDelay = time.Millisecond

// control implements router.Producer: Pause/Resume/Stop toggle a condition
// variable that the replay loop waits on between units.
//
// Grounded on pkg/eax/updatemgr.go's verCv *sync.Cond gate-one-goroutine
// pattern in the teacher repo.
type control struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool
}

func newControl() *control {
	c := &control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *control) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

func (c *control) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *control) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// waitIfPaused blocks while paused. Returns false once Stop has been
// called, in which case the caller must abandon the remaining work.
func (c *control) waitIfPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.stopped {
		c.cond.Wait()
	}
	return !c.stopped
}

func (c *control) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// waitForDriver blocks until at least one CLIENT is registered with r, or
// ctx is canceled (returns false in the latter case).
func waitForDriver(ctx context.Context, r Router) bool {
	if r.ClientCount(paproto.Client) > 0 {
		return true
	}
	ticker := time.NewTicker(clientPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if r.ClientCount(paproto.Client) > 0 {
				return true
			}
		}
	}
}

// yield pauses briefly between units of work and reports whether the
// replayer should keep going (false if ctx is done).
func yield(ctx context.Context) bool {
	t := time.NewTimer(interUnitDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// logDone is a small shared helper so all three replayers report
// completion the same way.
func logDone(log zerolog.Logger, kind string, files int, packets int) {
	log.Info().Str("replayer", kind).Int("files", files).Int("packets", packets).Msg("datalog replay complete")
}
