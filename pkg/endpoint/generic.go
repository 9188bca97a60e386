package endpoint

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// ServeDriver runs the generic driver protocol over conn until it is
// closed or the read loop errors: bytes received are wrapped as packets of
// c's packet type (FROM_DRIVER for a driver connection) and handed to the
// router; the connection registers with the router under c's endpoint type
// (paproto.Client for a driver) on entry and deregisters on exit.
//
// Serve* functions block until the connection ends; call them in their own
// goroutine per accepted connection.
func ServeDriver(log zerolog.Logger, r Router, c *Conn) error {
	enlargeReadBuffer(c.conn, c.log)
	r.Register(c.endpoint, c)
	defer r.Deregister(c.endpoint, c)

	return readLoop(c, func(data []byte) error {
		packets, err := paproto.Create(data, c.packetType, paproto.NTPNow())
		if err != nil {
			return err
		}
		r.GotData(packets)
		return nil
	})
}

// readLoop reads chunks from c's connection until it errors, invoking
// onData for each non-empty chunk. A plain io.EOF (orderly close) is
// returned as nil; any other read error is returned as-is.
func readLoop(c *Conn, onData func(data []byte) error) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if derr := onData(append([]byte(nil), buf[:n]...)); derr != nil {
				return derr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
