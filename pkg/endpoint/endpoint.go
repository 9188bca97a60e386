// Package endpoint implements the per-socket protocol state machines that
// sit between a raw net.Conn and the router: generic driver framing,
// instrument connection tracking and keep-alive, Digi-framed instrument
// decoding, Digi-command auto-binary-timestamp, and the line-delimited
// command protocol.
//
// Grounded on ooi_port_agent/protocols.py, adapted from Twisted's
// Protocol/connectionMade/connectionLost callbacks to a goroutine-per-
// connection read loop, the shape this pack's network daemons use for a
// single accepted connection (e.g. the request-handling goroutines started
// by the teacher's pkg/api listeners).
package endpoint

import (
	"net"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
	"github.com/oceanobs/portagent/pkg/router"
)

// Router is the subset of *router.Router every protocol needs. Defined here
// (rather than imported as a concrete type) so tests can supply a fake.
type Router interface {
	Register(endpointType paproto.EndpointType, handle ClientHandle)
	Deregister(endpointType paproto.EndpointType, handle ClientHandle)
	GotData(packets []*paproto.Packet)
}

// ClientHandle is the write side the router drives. *Conn implements it.
// Aliased to router.ClientHandle so a *router.Router satisfies Router
// without a wrapper.
type ClientHandle = router.ClientHandle

// readChunkSize bounds a single conn.Read call; packets are created
// per-chunk, not per-line, so this is independent of MaxPayload.
const readChunkSize = 8192

// driverReadBufferBytes enlarges the accepted driver socket's OS receive
// buffer to roughly 10x a typical 64KiB default, so a bursty high-rate
// instrument stream relayed to a slow driver does not livelock the kernel
// buffer.
const driverReadBufferBytes = 640 * 1024

// InstrumentNotifier lets the agent orchestrator track aggregate connection
// state across one or more instrument sockets.
type InstrumentNotifier interface {
	InstrumentConnected(handle ClientHandle)
	InstrumentDisconnected(handle ClientHandle)
}

func enlargeReadBuffer(conn net.Conn, log zerolog.Logger) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetReadBuffer(driverReadBufferBytes); err != nil {
		log.Debug().Err(err).Msg("could not enlarge read buffer")
	}
}
