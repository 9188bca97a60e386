package portagent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/datalog"
	"github.com/oceanobs/portagent/pkg/listener"
)

// NewDatalog builds the binary-replay variant: no instrument sockets, file
// contents are injected as live FROM_INSTRUMENT/PA_CONFIG traffic.
//
// Grounded on agents.py's DatalogReadingPortAgent.
func NewDatalog(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	a, err := newBase(log, cfg, registrar, false)
	if err != nil {
		return nil, err
	}
	a.SetNumConnections(0)

	replayer := datalog.NewBinaryReplayer(log, a.Router(), cfg.Files)
	go func() {
		if err := replayer.Run(ctx); err != nil {
			a.log.Debug().Err(err).Msg("binary replayer stopped")
		}
	}()

	return a, nil
}

// NewDigilogASCII builds the Digi-ASCII replay variant: <OOI-TS ...>
// delimited text records are injected as FROM_INSTRUMENT packets.
func NewDigilogASCII(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	a, err := newBase(log, cfg, registrar, false)
	if err != nil {
		return nil, err
	}
	a.SetNumConnections(0)

	replayer := datalog.NewDigiASCIIReplayer(log, a.Router(), cfg.Files)
	go func() {
		if err := replayer.Run(ctx); err != nil {
			a.log.Debug().Err(err).Msg("digi-ascii replayer stopped")
		}
	}()

	return a, nil
}

// NewChunky builds the fixed-chunk replay variant: files are replayed in
// 1024-byte chunks with packet_time=0.
func NewChunky(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	a, err := newBase(log, cfg, registrar, false)
	if err != nil {
		return nil, err
	}
	a.SetNumConnections(0)

	replayer := datalog.NewChunkyReplayer(log, a.Router(), cfg.Files)
	go func() {
		if err := replayer.Run(ctx); err != nil {
			a.log.Debug().Err(err).Msg("chunky replayer stopped")
		}
	}()

	return a, nil
}
