package portagent

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/endpoint"
	"github.com/oceanobs/portagent/pkg/listener"
	"github.com/oceanobs/portagent/pkg/paproto"
	"github.com/oceanobs/portagent/pkg/reconnect"
)

// digiCommands is the fixed set of Digi terminal-server commands the RSN
// variant forwards to the side-band command socket, matching agents.py's
// RsnPortAgent.digi_commands.
var digiCommands = []string{
	"help", "tinfo", "cinfo", "time", "timestamp", "power", "break", "gettime", "getver",
}

// NewRSN builds the RSN variant: a Digi-framed data socket (registered
// under paproto.Instrument) plus a Digi-command side-band socket
// (registered under paproto.Digi, which auto-sends the binary-timestamp
// command on connect). Every Digi command name is registered on the
// command protocol; invoking one forwards "<cmd> <args>\n" as a DIGI_CMD
// packet to the Digi endpoint.
//
// Grounded on agents.py's RsnPortAgent.
func NewRSN(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	a, err := newBase(log, cfg, registrar, true)
	if err != nil {
		return nil, err
	}
	a.SetNumConnections(2)

	dataDialer := reconnect.New(log, instAddr(cfg), func(ctx context.Context, conn net.Conn) error {
		c := endpoint.NewConn(a.log, conn, a.router, paproto.Instrument, paproto.FromInstrument)
		return endpoint.ServeDigiInstrument(a.log, a.router, c, a)
	})
	go dataDialer.Run(ctx)

	digiAddr := net.JoinHostPort(cfg.InstrumentAddr, strconv.Itoa(cfg.DigiPort))
	digiDialer := reconnect.New(log, digiAddr, func(ctx context.Context, conn net.Conn) error {
		c := endpoint.NewConn(a.log, conn, a.router, paproto.Digi, paproto.DigiRsp)
		return endpoint.ServeDigiCommand(a.log, a.router, c, a)
	})
	go digiDialer.Run(ctx)

	for _, cmd := range digiCommands {
		a.cmds.RegisterCommand(cmd, handleDigiCommand(a))
	}

	return a, nil
}

// handleDigiCommand forwards the command and its arguments to the Digi
// endpoint as a single DIGI_CMD packet, joining [command]+args with a
// trailing newline, matching agents.py's _handle_digi_command exactly.
func handleDigiCommand(a *Agent) endpoint.CommandFunc {
	return func(command string, args []string) []*paproto.Packet {
		parts := append([]string{command}, args...)
		line := strings.Join(parts, " ") + "\n"
		pkts, _ := paproto.Create([]byte(line), paproto.DigiCmd, paproto.NTPNow())
		return pkts
	}
}
