// Package listener implements the agent's three listening sockets: data
// (driver), command (operator), and an optional sniffer. Each accepted
// connection is handed to a caller-supplied Binder, which installs the
// appropriate endpoint protocol (see pkg/endpoint) and registers it with
// the router.
//
// Grounded on ooi_port_agent/agents.py's _start_servers (TCP4ServerEndpoint
// per port, with a port==0 "ephemeral, report it back" convention fed into
// a Consul service-registration callback).
package listener

import (
	"net"
	"strconv"

	"github.com/rs/zerolog"
)

// Binder installs a protocol on a freshly accepted connection. It is
// invoked in its own goroutine, so it may block: it should itself call the
// relevant endpoint.Serve* function, which blocks for the connection's
// life.
type Binder func(conn net.Conn)

// Listener wraps a single bound TCP listen socket and its accept loop.
type Listener struct {
	log  zerolog.Logger
	name string
	ln   net.Listener
}

// Listen binds addr (host:port, port may be "0" for an ephemeral port),
// reports the resolved port via reportPort (if non-nil), and starts
// accepting connections in the background, dispatching each to bind.
func Listen(log zerolog.Logger, name, addr string, bind Binder, reportPort func(port int)) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		log:  log.With().Str("component", "listener").Str("listener", name).Logger(),
		name: name,
		ln:   ln,
	}

	if port, ok := portOf(ln.Addr()); ok && reportPort != nil {
		reportPort(port)
	}

	l.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	go l.acceptLoop(bind)
	return l, nil
}

func portOf(addr net.Addr) (int, bool) {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	return port, true
}

// Port returns the listener's bound port.
func (l *Listener) Port() int {
	port, _ := portOf(l.ln.Addr())
	return port
}

// Close stops accepting new connections; connections already accepted are
// unaffected.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func (l *Listener) acceptLoop(bind Binder) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.log.Debug().Err(err).Msg("accept loop exiting")
			return
		}
		l.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("accepted connection")
		go bind(conn)
	}
}

// ServiceRegistrar is the external collaborator that binds an agent's
// named ports to a service directory (e.g. a Consul agent) and refreshes a
// liveness TTL. A nil ServiceRegistrar is a valid, silent no-op.
//
// Grounded on agents.py's data_port_cb/command_port_cb/sniff_port_cb plus
// PortAgent._agent's Consul HTTP PUT/GET calls, modeled here as an injected
// seam rather than a hardcoded HTTP client (see SPEC_FULL.md's Section C,
// item 2).
type ServiceRegistrar interface {
	RegisterPort(name string, port int, ttlSeconds int) error
	Heartbeat(name string) error
}
