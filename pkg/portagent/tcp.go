package portagent

import (
	"context"
	"net"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/endpoint"
	"github.com/oceanobs/portagent/pkg/listener"
	"github.com/oceanobs/portagent/pkg/paproto"
	"github.com/oceanobs/portagent/pkg/reconnect"
)

// NewTCP builds the single-instrument-socket variant: one outbound
// connection to InstrumentAddr:InstrumentPort, registered under
// paproto.Instrument.
//
// Grounded on agents.py's TcpPortAgent.
func NewTCP(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	a, err := newBase(log, cfg, registrar, true)
	if err != nil {
		return nil, err
	}
	a.SetNumConnections(1)

	dialer := reconnect.New(log, instAddr(cfg), func(ctx context.Context, conn net.Conn) error {
		c := endpoint.NewConn(a.log, conn, a.router, paproto.Instrument, paproto.FromInstrument)
		return endpoint.ServeInstrument(a.log, a.router, c, a)
	})
	go dialer.Run(ctx)

	return a, nil
}

func instAddr(cfg Config) string {
	return net.JoinHostPort(cfg.InstrumentAddr, strconv.Itoa(cfg.InstrumentPort))
}
