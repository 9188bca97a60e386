package endpoint

import (
	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// digiBufferCap bounds the Digi-instrument protocol's rolling receive
// buffer, matching protocols.py's deque(maxlen=65535).
const digiBufferCap = 65535

// binaryTimestampCommand is sent to a newly connected Digi terminal server
// to put it into binary-timestamp mode, matching common.py's
// BINARY_TIMESTAMP.
const binaryTimestampCommand = "time 2\n"

// ServeDigiInstrument runs the Digi-framed instrument protocol: the remote
// end sends bytes already framed as port agent packets, so each receive
// appends to a bounded rolling buffer and decodes packets greedily,
// forwarding each fully decoded packet straight to the router (no
// re-wrapping). The partial tail is retained across reads.
func ServeDigiInstrument(log zerolog.Logger, r Router, c *Conn, notifier InstrumentNotifier) error {
	configureKeepalive(c.conn, c.log)

	notifier.InstrumentConnected(c)
	r.Register(c.endpoint, c)
	defer func() {
		r.Deregister(c.endpoint, c)
		notifier.InstrumentDisconnected(c)
	}()

	var buf []byte
	return readLoop(c, func(data []byte) error {
		buf = append(buf, data...)
		if len(buf) > digiBufferCap {
			buf = buf[len(buf)-digiBufferCap:]
		}

		var decoded []*paproto.Packet
		for {
			pkt, rest := paproto.Decode(buf)
			if pkt == nil {
				buf = rest
				break
			}
			decoded = append(decoded, pkt)
			buf = rest
		}
		if len(decoded) > 0 {
			r.GotData(decoded)
		}
		return nil
	})
}

// ServeDigiCommand runs the Digi side-band command protocol: on connect it
// sends the literal binary-timestamp command, then behaves exactly as
// ServeInstrument.
func ServeDigiCommand(log zerolog.Logger, r Router, c *Conn, notifier InstrumentNotifier) error {
	c.Write([]byte(binaryTimestampCommand))
	return ServeInstrument(log, r, c, notifier)
}
