package endpoint

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// Conn adapts a net.Conn into a router.ClientHandle: writes from the router
// go straight to the socket, and incoming bytes are framed and handed to
// the router by the protocol-specific Serve function built on top of it.
//
// Every Conn carries a correlation ID (grounded on Atsika-aznet's
// uuid.New().String() per-connection ID in aznet.Dial), attached to every
// log line it emits and available via ID(), which the orchestrator uses to
// track live instrument connections.
type Conn struct {
	log        zerolog.Logger
	id         string
	conn       net.Conn
	router     Router
	endpoint   paproto.EndpointType
	packetType paproto.PacketType

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an accepted or dialed net.Conn for use with the Serve*
// functions in this package.
func NewConn(log zerolog.Logger, conn net.Conn, router Router, endpointType paproto.EndpointType, packetType paproto.PacketType) *Conn {
	return newConn(log, conn, router, endpointType, packetType)
}

func newConn(log zerolog.Logger, conn net.Conn, router Router, endpointType paproto.EndpointType, packetType paproto.PacketType) *Conn {
	id := uuid.New().String()
	return &Conn{
		log:        log.With().Str("endpoint", string(endpointType)).Str("remote", conn.RemoteAddr().String()).Str("conn_id", id).Logger(),
		id:         id,
		conn:       conn,
		router:     router,
		endpoint:   endpointType,
		packetType: packetType,
	}
}

// ID returns this connection's correlation ID.
func (c *Conn) ID() string {
	return c.id
}

// Write implements router.ClientHandle: it writes data directly to the
// underlying socket. Safe for concurrent use with Close and the read loop.
func (c *Conn) Write(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, err := c.conn.Write(data); err != nil {
		c.log.Debug().Err(err).Msg("write failed")
	}
}

// Close closes the underlying socket. Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// RemoteAddr returns the connection's remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
