package datalog

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// chunkSize is the fixed read unit for ChunkyReplayer, matching §4.8's
// "Read the file in 1024-byte chunks."
const chunkSize = 1024

// ChunkyReplayer replays one or more files by emitting fixed 1024-byte
// chunks as FROM_INSTRUMENT packets with packet_time=0 — downstream
// consumers are expected to recover timing from the payload itself.
//
// Grounded on agents.py's ChunkyDatalogPortAgent.
type ChunkyReplayer struct {
	*control
	log   zerolog.Logger
	r     Router
	files []string
}

// NewChunkyReplayer sorts files lexicographically (no documented ordering
// override exists for this variant, unlike Digi-ASCII's timestamp token).
func NewChunkyReplayer(log zerolog.Logger, r Router, files []string) *ChunkyReplayer {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	return &ChunkyReplayer{
		control: newControl(),
		log:     log.With().Str("component", "datalog").Str("replayer", "chunky").Logger(),
		r:       r,
		files:   sorted,
	}
}

// Run blocks until at least one driver is connected, then replays every
// file in order, one 1024-byte chunk at a time.
func (c *ChunkyReplayer) Run(ctx context.Context) error {
	if !waitForDriver(ctx, c.r) {
		return ctx.Err()
	}

	c.r.RegisterProducer(c)
	defer c.r.DeregisterProducer(c)

	emitted := 0
	for _, path := range c.files {
		if c.isStopped() {
			break
		}
		n, err := c.replayFile(ctx, path)
		emitted += n
		if err != nil {
			c.log.Warn().Err(err).Str("file", path).Msg("chunky replay: file error, skipping rest of file")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	logDone(c.log, "chunky", len(c.files), emitted)
	return nil
}

func (c *ChunkyReplayer) replayFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	emitted := 0
	for {
		if !c.waitIfPaused() {
			return emitted, nil
		}
		n, err := f.Read(buf)
		if n > 0 {
			pkts, perr := paproto.Create(append([]byte(nil), buf[:n]...), paproto.FromInstrument, 0)
			if perr != nil {
				return emitted, perr
			}
			c.r.GotData(pkts)
			emitted += len(pkts)
		}
		if err != nil {
			if err == io.EOF {
				return emitted, nil
			}
			return emitted, err
		}
		if !yield(ctx) {
			return emitted, nil
		}
	}
}
