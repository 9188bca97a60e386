// Package portagent implements the agent orchestrator (C6): per-variant
// composition of the router, listeners, reconnecting instrument dialers,
// command registration, heartbeat, and aggregate connection-state
// reporting.
//
// Grounded on ooi_port_agent/agents.py's PortAgent base class and its TCP,
// RSN, BOTPT, and datalog-reading subclasses.
package portagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/endpoint"
	"github.com/oceanobs/portagent/pkg/listener"
	"github.com/oceanobs/portagent/pkg/logger"
	"github.com/oceanobs/portagent/pkg/paproto"
	"github.com/oceanobs/portagent/pkg/router"
)

// heartbeatInterval is the PA_HEARTBEAT cadence, matching common.py's
// HEARTBEAT_INTERVAL.
const heartbeatInterval = 10 * time.Second

const (
	statusConnected    = "CONNECTED"
	statusDisconnected = "DISCONNECTED"
)

// Agent is the base orchestrator shared by every variant: it owns the
// router, the three listening sockets, the command registry, periodic
// heartbeat, and aggregate instrument connection-state tracking.
// Variant constructors (NewTCP, NewRSN, NewBOTPT, datalog replayers) lay
// instrument sockets or file readers on top of an *Agent.
type Agent struct {
	log zerolog.Logger
	cfg Config

	router    *router.Router
	cmds      *endpoint.CommandProtocol
	registrar listener.ServiceRegistrar

	dataListener    *listener.Listener
	commandListener *listener.Listener
	sniffListener   *listener.Listener

	asciiLog  *logger.Logger
	binaryLog *logger.Logger

	mu             sync.Mutex
	liveInstr      map[string]struct{}
	numConnections int
	state          string

	cancel context.CancelFunc
}

// newBase wires routes, the three listeners, base commands (get_state,
// get_config, get_version), and starts the heartbeat loop. Variant
// constructors call this first, then add instrument sockets and
// numConnections.
//
// attachLoggers controls whether the daily ASCII/binary loggers (C9) are
// created and registered. TCP/RSN/BOTPT pass true; datalog replay variants
// pass false unconditionally, matching §4.9's "Replayers do not attach
// loggers (avoids writing the data back out)."
func newBase(log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar, attachLoggers bool) (*Agent, error) {
	if cfg.Version != "" && !semver.IsValid("v"+strings.TrimPrefix(cfg.Version, "v")) {
		return nil, fmt.Errorf("portagent: invalid version semver %q", cfg.Version)
	}
	if cfg.Name == "" {
		cfg.Name = strconv.Itoa(cfg.CommandPort)
	}
	if cfg.RefDes == "" {
		cfg.RefDes = cfg.Type
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		log:       log.With().Str("component", "agent").Str("name", cfg.Name).Logger(),
		cfg:       cfg,
		router:    router.New(log),
		cmds:      endpoint.NewCommandProtocol(),
		registrar: registrar,
		liveInstr: make(map[string]struct{}),
		state:     statusDisconnected,
		cancel:    cancel,
	}

	a.addRoutes()
	a.registerBaseCommands()

	if attachLoggers && cfg.LogDir != "" {
		if err := a.attachLoggers(); err != nil {
			cancel()
			return nil, err
		}
	}

	if err := a.startListeners(); err != nil {
		cancel()
		return nil, err
	}

	go a.router.Run(ctx)
	go a.heartbeatLoop(ctx)

	return a, nil
}

// attachLoggers opens the daily ASCII and binary log files and registers
// them as router clients under paproto.Logger/paproto.Datalogger. Unlike
// driver/instrument/command clients, loggers are registered once at
// startup and never deregistered.
func (a *Agent) attachLoggers() error {
	ascii, err := logger.New(a.log, a.cfg.LogDir, a.cfg.Name, ".log")
	if err != nil {
		return fmt.Errorf("portagent: ascii logger: %w", err)
	}
	binary, err := logger.New(a.log, a.cfg.LogDir, a.cfg.Name, ".datalog")
	if err != nil {
		ascii.Close()
		return fmt.Errorf("portagent: binary logger: %w", err)
	}
	a.asciiLog = ascii
	a.binaryLog = binary
	a.router.Register(paproto.Logger, ascii)
	a.router.Register(paproto.Datalogger, binary)
	return nil
}

func (a *Agent) addRoutes() {
	a.router.AddRoute(paproto.All, paproto.Logger, paproto.ASCII)
	a.router.AddRoute(paproto.All, paproto.Datalogger, paproto.Packed)

	a.router.AddRoute(paproto.FromDriver, paproto.Instrument, paproto.Raw)

	a.router.AddRoute(paproto.FromInstrument, paproto.Client, paproto.Packed)
	a.router.AddRoute(paproto.PickledFromInstrument, paproto.Client, paproto.Packed)

	a.router.AddRoute(paproto.PACommand, paproto.CommandHandler, paproto.Packed)

	a.router.AddRoute(paproto.PAConfig, paproto.Client, paproto.Packed)
	a.router.AddRoute(paproto.PAConfig, paproto.Command, paproto.Raw)
	a.router.AddRoute(paproto.PAFault, paproto.Client, paproto.Packed)
	a.router.AddRoute(paproto.PAHeartbeat, paproto.Client, paproto.Packed)
	a.router.AddRoute(paproto.PAStatus, paproto.Client, paproto.Packed)
	a.router.AddRoute(paproto.PAStatus, paproto.Command, paproto.Raw)

	a.router.AddRoute(paproto.DigiCmd, paproto.Digi, paproto.Raw)

	a.router.AddRoute(paproto.DigiRsp, paproto.Client, paproto.Packed)
	a.router.AddRoute(paproto.DigiRsp, paproto.Command, paproto.Raw)
}

func (a *Agent) registerBaseCommands() {
	a.cmds.RegisterCommand("get_state", func(string, []string) []*paproto.Packet {
		return a.statusPackets()
	})
	a.cmds.RegisterCommand("get_config", func(string, []string) []*paproto.Packet {
		body, err := json.Marshal(a.cfg)
		if err != nil {
			body = []byte(fmt.Sprintf("error marshaling config: %v", err))
		}
		pkts, _ := paproto.Create(body, paproto.PAConfig, paproto.NTPNow())
		return pkts
	})
	a.cmds.RegisterCommand("get_version", func(string, []string) []*paproto.Packet {
		pkts, _ := paproto.Create([]byte(a.cfg.Version), paproto.PAConfig, paproto.NTPNow())
		return pkts
	})
}

func (a *Agent) startListeners() error {
	var err error
	a.dataListener, err = listener.Listen(a.log, "data", addr(a.cfg.DataPort), a.bindDriver, a.reportPort("data", "-port-agent"))
	if err != nil {
		return fmt.Errorf("portagent: data listener: %w", err)
	}
	a.commandListener, err = listener.Listen(a.log, "command", addr(a.cfg.CommandPort), a.bindCommand, a.reportPort("command", "-command-port-agent"))
	if err != nil {
		return fmt.Errorf("portagent: command listener: %w", err)
	}
	a.sniffListener, err = listener.Listen(a.log, "sniff", addr(a.cfg.SniffPort), a.bindSniff, a.reportPort("sniff", "-sniff-port-agent"))
	if err != nil {
		return fmt.Errorf("portagent: sniff listener: %w", err)
	}
	return nil
}

func addr(port int) string {
	return "0.0.0.0:" + strconv.Itoa(port)
}

func (a *Agent) reportPort(kind, suffix string) func(int) {
	return func(port int) {
		switch kind {
		case "data":
			a.cfg.DataPort = port
		case "command":
			a.cfg.CommandPort = port
		case "sniff":
			a.cfg.SniffPort = port
		}
		if a.registrar == nil {
			return
		}
		id := a.cfg.RefDes + suffix
		if err := a.registrar.RegisterPort(id, port, a.cfg.TTLSeconds); err != nil {
			a.log.Warn().Err(err).Str("service_id", id).Msg("service registration failed")
		}
	}
}

func (a *Agent) bindDriver(conn net.Conn) {
	c := endpoint.NewConn(a.log, conn, a.router, paproto.Client, paproto.FromDriver)
	_ = endpoint.ServeDriver(a.log, a.router, c)
}

func (a *Agent) bindCommand(conn net.Conn) {
	c := endpoint.NewConn(a.log, conn, a.router, paproto.Command, paproto.PACommand)
	_ = endpoint.ServeCommand(a.log, a.router, c, a.cmds)
}

func (a *Agent) bindSniff(conn net.Conn) {
	c := endpoint.NewConn(a.log, conn, a.router, paproto.Logger, paproto.Unknown)
	_ = endpoint.ServeDriver(a.log, a.router, c)
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pkts, _ := paproto.Create([]byte("HB"), paproto.PAHeartbeat, paproto.NTPNow())
			a.router.GotData(pkts)
			if a.registrar != nil {
				_ = a.registrar.Heartbeat(a.cfg.RefDes)
			}
		}
	}
}

// InstrumentConnected implements endpoint.InstrumentNotifier: it tracks the
// connection and, once the live set reaches numConnections, transitions
// state to CONNECTED and emits PA_STATUS.
func (a *Agent) InstrumentConnected(handle endpoint.ClientHandle) {
	a.mu.Lock()
	if c, ok := handle.(interface{ ID() string }); ok {
		a.liveInstr[c.ID()] = struct{}{}
	}
	transitioned := len(a.liveInstr) == a.numConnections && a.state != statusConnected
	if transitioned {
		a.state = statusConnected
	}
	a.mu.Unlock()

	if transitioned {
		a.emitStatus()
	}
}

// InstrumentDisconnected implements endpoint.InstrumentNotifier.
func (a *Agent) InstrumentDisconnected(handle endpoint.ClientHandle) {
	a.mu.Lock()
	if c, ok := handle.(interface{ ID() string }); ok {
		delete(a.liveInstr, c.ID())
	}
	transitioned := a.state != statusDisconnected
	a.state = statusDisconnected
	a.mu.Unlock()

	if transitioned {
		a.emitStatus()
	}
}

func (a *Agent) emitStatus() {
	a.router.GotData(a.statusPackets())
}

func (a *Agent) statusPackets() []*paproto.Packet {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()
	pkts, _ := paproto.Create([]byte(state), paproto.PAStatus, paproto.NTPNow())
	return pkts
}

// Router exposes the agent's router, for variants and datalog replayers
// that must call GotData directly or register as a producer.
func (a *Agent) Router() *router.Router { return a.router }

// Commands exposes the command registry so variants can register
// additional commands (e.g. RSN's Digi commands).
func (a *Agent) Commands() *endpoint.CommandProtocol { return a.cmds }

// SetNumConnections sets the expected instrument connection count used for
// aggregate CONNECTED/DISCONNECTED state tracking.
func (a *Agent) SetNumConnections(n int) { a.numConnections = n }

// Close stops the heartbeat loop, closes all three listeners, and flushes
// the daily loggers if attached.
func (a *Agent) Close() error {
	a.cancel()
	a.dataListener.Close()
	a.commandListener.Close()
	a.sniffListener.Close()
	if a.asciiLog != nil {
		a.asciiLog.Close()
	}
	if a.binaryLog != nil {
		a.binaryLog.Close()
	}
	return nil
}
