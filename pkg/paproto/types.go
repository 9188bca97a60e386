// Package paproto implements the port agent wire packet: the binary header
// and payload framing shared by every instrument, driver, command, and log
// endpoint in the system.
package paproto

// PacketType identifies the kind of data carried by a packet. Values are
// part of the wire contract and must not be renumbered.
type PacketType uint8

const (
	Unknown PacketType = iota
	FromInstrument
	FromDriver
	PACommand
	PAStatus
	PAFault
	PAConfig
	DigiCmd
	DigiRsp
	PAHeartbeat
	PickledFromInstrument

	// All is a sentinel used only when adding routes: it expands to one rule
	// per concrete PacketType at insertion time. It is never the type of an
	// actual packet on the wire.
	All PacketType = 0xFF
)

var packetTypeNames = map[PacketType]string{
	Unknown:               "UNKNOWN",
	FromInstrument:        "FROM_INSTRUMENT",
	FromDriver:            "FROM_DRIVER",
	PACommand:             "PA_COMMAND",
	PAStatus:              "PA_STATUS",
	PAFault:               "PA_FAULT",
	PAConfig:              "PA_CONFIG",
	DigiCmd:               "DIGI_CMD",
	DigiRsp:               "DIGI_RSP",
	PAHeartbeat:           "PA_HEARTBEAT",
	PickledFromInstrument: "PICKLED_FROM_INSTRUMENT",
	All:                   "ALL",
}

func (t PacketType) String() string {
	if s, ok := packetTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ConcretePacketTypes lists every PacketType that can appear on the wire,
// i.e. every value except All.
var ConcretePacketTypes = []PacketType{
	Unknown, FromInstrument, FromDriver, PACommand, PAStatus, PAFault,
	PAConfig, DigiCmd, DigiRsp, PAHeartbeat, PickledFromInstrument,
}

// EndpointType identifies a class of registered client within the router.
type EndpointType string

const (
	Instrument     EndpointType = "instrument"      // TCP/RSN instrument socket
	InstrumentData EndpointType = "instrument_data" // BOTPT RX socket
	Digi           EndpointType = "digi_cmd"        // RSN side-band command socket
	Client         EndpointType = "client"          // driver
	Command        EndpointType = "command"         // operator command port
	Logger         EndpointType = "logger"           // ASCII log sink
	Datalogger     EndpointType = "data_logger"      // binary log sink
	CommandHandler EndpointType = "command_handler"  // PA_COMMAND audit sink
	PortAgentSelf  EndpointType = "port_agent"        // the orchestrator itself
)

// Format is the wire representation a client receives a packet in.
type Format int

const (
	// Raw delivers just the packet's payload bytes.
	Raw Format = iota
	// Packed delivers the full framed packet (header + payload).
	Packed
	// ASCII delivers one human-readable log line terminated by a newline.
	ASCII
)

func (f Format) String() string {
	switch f {
	case Raw:
		return "raw"
	case Packed:
		return "packet"
	case ASCII:
		return "ascii"
	default:
		return "unknown"
	}
}
