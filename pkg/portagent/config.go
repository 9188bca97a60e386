package portagent

// Config is the plain struct describing a single agent instance. It is the
// interface boundary between a composition root (cmd/portagent) and the
// orchestrator: nothing in this package parses flags or environment files
// — see SPEC_FULL.md's Section A.3. Yaml tags exist solely so
// cmd/portagent can gopkg.in/yaml.v3-unmarshal the `--config` form
// directly into this struct; the package itself never touches yaml.
type Config struct {
	// Type selects the orchestrator variant: "tcp", "rsn", "botpt",
	// "datalog", "digilog_ascii", or "chunky".
	Type string `yaml:"type"`

	// Name identifies this agent for logging and the daily log file
	// prefix. Defaults to the command port if empty (agents.py's
	// config.get('name', str(self.command_port))).
	Name string `yaml:"name"`

	// RefDes is the reference designator used to build service-
	// registration IDs; defaults to Type if empty.
	RefDes string `yaml:"refdes"`

	// Version is reported verbatim by the get_version command, validated
	// as well-formed semver at construction time if non-empty.
	Version string `yaml:"version"`

	// DataPort, CommandPort, SniffPort are the three listening ports.
	// Zero means "bind an ephemeral port."
	DataPort    int `yaml:"data_port"`
	CommandPort int `yaml:"command_port"`
	SniffPort   int `yaml:"sniff_port"`

	// TTLSeconds is the liveness TTL reported to a ServiceRegistrar.
	TTLSeconds int `yaml:"ttl_seconds"`

	// InstrumentAddr/InstrumentPort dial the instrument for the TCP and
	// RSN variants.
	InstrumentAddr string `yaml:"instrument_addr"`
	InstrumentPort int    `yaml:"instrument_port"`

	// DigiPort is the RSN variant's side-band Digi command port.
	DigiPort int `yaml:"digi_port"`

	// RxPort/TxPort are the BOTPT variant's receive/transmit instrument
	// ports (both dialed against InstrumentAddr).
	RxPort int `yaml:"rx_port"`
	TxPort int `yaml:"tx_port"`

	// Files lists datalog replay inputs (glob patterns, pre-expanded by
	// the caller) for the datalog/digilog_ascii/chunky variants.
	Files []string `yaml:"files"`

	// LogDir is the directory the daily ASCII (.log) and binary
	// (.datalog) loggers (C9) are written to. Empty disables both
	// loggers entirely (used by tests, and harmless for embedders that
	// don't want persisted logs). Datalog-replay variants never attach
	// loggers regardless of this setting (§4.9: "Replayers do not
	// attach loggers").
	LogDir string `yaml:"log_dir"`
}

// AgentType names the supported orchestrator variants.
type AgentType string

const (
	AgentTCP          AgentType = "tcp"
	AgentRSN          AgentType = "rsn"
	AgentBOTPT        AgentType = "botpt"
	AgentDatalog      AgentType = "datalog"
	AgentDigilogASCII AgentType = "digilog_ascii"
	AgentChunky       AgentType = "chunky"
)
