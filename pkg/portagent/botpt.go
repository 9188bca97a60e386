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

// NewBOTPT builds the dual-socket RX/TX variant: RX delivers instrument
// data (registered under paproto.InstrumentData), TX is write-only from
// the driver's perspective (registered under paproto.Instrument so
// FROM_DRIVER bytes route to it; its own reads, if any, are tagged
// UNKNOWN).
//
// Grounded on agents.py's BotptPortAgent.
func NewBOTPT(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	a, err := newBase(log, cfg, registrar, true)
	if err != nil {
		return nil, err
	}
	a.SetNumConnections(2)

	rxAddr := net.JoinHostPort(cfg.InstrumentAddr, strconv.Itoa(cfg.RxPort))
	rxDialer := reconnect.New(log, rxAddr, func(ctx context.Context, conn net.Conn) error {
		c := endpoint.NewConn(a.log, conn, a.router, paproto.InstrumentData, paproto.FromInstrument)
		return endpoint.ServeInstrument(a.log, a.router, c, a)
	})
	go rxDialer.Run(ctx)

	txAddr := net.JoinHostPort(cfg.InstrumentAddr, strconv.Itoa(cfg.TxPort))
	txDialer := reconnect.New(log, txAddr, func(ctx context.Context, conn net.Conn) error {
		c := endpoint.NewConn(a.log, conn, a.router, paproto.Instrument, paproto.Unknown)
		return endpoint.ServeInstrument(a.log, a.router, c, a)
	})
	go txDialer.Run(ctx)

	return a, nil
}
