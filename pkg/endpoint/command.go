package endpoint

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// CommandFunc handles one dispatched command line and returns the packets
// to emit in response (possibly none).
type CommandFunc func(command string, args []string) []*paproto.Packet

// CommandProtocol is the line-delimited operator command protocol: every
// full line is both logged as a PA_COMMAND packet and dispatched to a
// registered callback by its first whitespace-delimited token.
type CommandProtocol struct {
	mu        sync.Mutex
	callbacks map[string]CommandFunc
}

// NewCommandProtocol creates an empty command callback registry. Agent
// orchestrators call RegisterCommand on it before accepting connections.
func NewCommandProtocol() *CommandProtocol {
	return &CommandProtocol{callbacks: make(map[string]CommandFunc)}
}

// RegisterCommand installs fn as the handler for command.
func (cp *CommandProtocol) RegisterCommand(command string, fn CommandFunc) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.callbacks[command] = fn
}

func (cp *CommandProtocol) lookup(command string) (CommandFunc, bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	fn, ok := cp.callbacks[command]
	return fn, ok
}

// ServeCommand runs the command protocol over conn: each newline-terminated
// line is emitted as a PA_COMMAND packet for auditing, then split into a
// command and arguments and dispatched. An unrecognised or empty command
// yields a PA_FAULT packet.
func ServeCommand(log zerolog.Logger, r Router, c *Conn, cp *CommandProtocol) error {
	r.Register(c.endpoint, c)
	defer r.Deregister(c.endpoint, c)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, readChunkSize), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()

		packets, err := paproto.Create([]byte(line), c.packetType, paproto.NTPNow())
		if err != nil {
			return err
		}
		r.GotData(packets)

		cp.handle(log, r, line)
	}
	return scanner.Err()
}

func (cp *CommandProtocol) handle(log zerolog.Logger, r Router, line string) {
	fields := strings.Fields(line)

	var (
		packets []*paproto.Packet
		err     error
		cmdErr  error
	)
	switch {
	case len(fields) == 0:
		cmdErr = paproto.ErrEmptyCommand
		packets, err = paproto.Create([]byte("Received empty command on command port"), paproto.PAFault, paproto.NTPNow())
	default:
		command, args := fields[0], fields[1:]
		if fn, ok := cp.lookup(command); ok {
			packets = fn(command, args)
		} else {
			cmdErr = fmt.Errorf("%w: %q", paproto.ErrUnknownCommand, command)
			msg := fmt.Sprintf("Received bad command on command port: %q", command)
			packets, err = paproto.Create([]byte(msg), paproto.PAFault, paproto.NTPNow())
		}
	}
	if cmdErr != nil {
		log.Warn().Err(cmdErr).Str("line", line).Msg("command fault")
	}
	if err != nil {
		return
	}
	if len(packets) > 0 {
		r.GotData(packets)
	}
}
