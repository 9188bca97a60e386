package datalog

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// BinaryReplayer replays one or more files of concatenated, already-framed
// port agent packets (§3 wire format). Only FROM_INSTRUMENT and PA_CONFIG
// packets are forwarded; everything else in the recording is dropped.
//
// Grounded on agents.py's DatalogReadingPortAgent, which filters the same
// two packet types on replay.
type BinaryReplayer struct {
	*control
	log   zerolog.Logger
	r     Router
	files []string
}

// NewBinaryReplayer sorts files lexicographically, matching §4.8's "File
// list is sorted lexicographically."
func NewBinaryReplayer(log zerolog.Logger, r Router, files []string) *BinaryReplayer {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	return &BinaryReplayer{
		control: newControl(),
		log:     log.With().Str("component", "datalog").Str("replayer", "binary").Logger(),
		r:       r,
		files:   sorted,
	}
}

// Run blocks until at least one driver is connected, then replays every
// file in order, one decoded packet at a time, until all files are
// consumed or ctx is canceled.
func (b *BinaryReplayer) Run(ctx context.Context) error {
	if !waitForDriver(ctx, b.r) {
		return ctx.Err()
	}

	b.r.RegisterProducer(b)
	defer b.r.DeregisterProducer(b)

	emitted := 0
	for _, path := range b.files {
		if b.isStopped() {
			break
		}
		n, err := b.replayFile(ctx, path)
		emitted += n
		if err != nil {
			b.log.Warn().Err(err).Str("file", path).Msg("binary replay: file error, skipping rest of file")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	logDone(b.log, "binary", len(b.files), emitted)
	return nil
}

func (b *BinaryReplayer) replayFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := paproto.NewStreamDecoder(f)
	emitted := 0
	for {
		if !b.waitIfPaused() {
			return emitted, nil
		}
		pkt, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				return emitted, nil
			}
			return emitted, err
		}
		if pkt.Header.PacketType == paproto.FromInstrument || pkt.Header.PacketType == paproto.PAConfig {
			b.r.GotData([]*paproto.Packet{pkt})
			emitted++
		}
		if !yield(ctx) {
			return emitted, nil
		}
	}
}
