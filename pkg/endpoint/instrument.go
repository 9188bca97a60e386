package endpoint

import (
	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// ServeInstrument runs the instrument protocol over conn: as ServeDriver,
// but it notifies notifier of connect/disconnect (so the agent orchestrator
// can aggregate state across multiple instrument sockets) and configures
// TCP_NODELAY plus platform keep-alive (idle=100s, interval=5s) before
// entering the read loop.
func ServeInstrument(log zerolog.Logger, r Router, c *Conn, notifier InstrumentNotifier) error {
	configureKeepalive(c.conn, c.log)

	notifier.InstrumentConnected(c)
	r.Register(c.endpoint, c)
	defer func() {
		r.Deregister(c.endpoint, c)
		notifier.InstrumentDisconnected(c)
	}()

	return readLoop(c, func(data []byte) error {
		packets, err := paproto.Create(data, c.packetType, paproto.NTPNow())
		if err != nil {
			return err
		}
		r.GotData(packets)
		return nil
	})
}
