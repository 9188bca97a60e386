package datalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/paproto"
)

// digiBufferCap bounds the rolling read buffer used to find complete
// <OOI-TS ...> records, matching §4.8's "A rolling buffer caps at 65535
// bytes."
const digiBufferCap = 65535

// digiReadChunk is the read unit appended to the rolling buffer between
// record-extraction passes.
const digiReadChunk = 4096

// ooiTSRecord matches one Digi-ASCII record: an opening marker carrying an
// ISO-8601 timestamp and a two-letter channel code, the record body (which
// may itself contain newlines — (?s) makes '.' match them), and the
// closing marker.
var ooiTSRecord = regexp.MustCompile(`(?s)<OOI-TS\s+(\S+)\s+(?:TX|TN|XS|XN)>\r?\n(.*?)<\\OOI-TS>`)

// digiFilenameToken extracts the <YYYYMMDD>T<HHMMSS>_UTC ordering token
// §4.8 allows filenames to carry, e.g. "foo_20230114T153000_UTC.txt".
var digiFilenameToken = regexp.MustCompile(`(\d{8}T\d{6})_UTC`)

// DigiASCIIReplayer replays Digi terminal-server ASCII recordings: each
// <OOI-TS ...>...<\OOI-TS> record becomes one FROM_INSTRUMENT packet
// timestamped from the record's own ISO-8601 marker.
//
// Grounded on agents.py's DigiDatalogAsciiPortAgent and its OOI-TS
// regular expression.
type DigiASCIIReplayer struct {
	*control
	log   zerolog.Logger
	r     Router
	files []string
}

// NewDigiASCIIReplayer sorts files by their <YYYYMMDD>T<HHMMSS>_UTC token
// when every file carries one, else lexicographically.
func NewDigiASCIIReplayer(log zerolog.Logger, r Router, files []string) *DigiASCIIReplayer {
	return &DigiASCIIReplayer{
		control: newControl(),
		log:     log.With().Str("component", "datalog").Str("replayer", "digi_ascii").Logger(),
		r:       r,
		files:   sortDigiFiles(files),
	}
}

func sortDigiFiles(files []string) []string {
	sorted := append([]string(nil), files...)

	token := func(p string) (string, bool) {
		m := digiFilenameToken.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			return "", false
		}
		return m[1], true
	}

	allTokenized := len(sorted) > 0
	for _, f := range sorted {
		if _, ok := token(f); !ok {
			allTokenized = false
			break
		}
	}

	if allTokenized {
		sort.Slice(sorted, func(i, j int) bool {
			ti, _ := token(sorted[i])
			tj, _ := token(sorted[j])
			return ti < tj
		})
	} else {
		sort.Strings(sorted)
	}
	return sorted
}

// Run blocks until at least one driver is connected, then replays every
// file in order, one decoded record at a time.
func (d *DigiASCIIReplayer) Run(ctx context.Context) error {
	if !waitForDriver(ctx, d.r) {
		return ctx.Err()
	}

	d.r.RegisterProducer(d)
	defer d.r.DeregisterProducer(d)

	emitted := 0
	for _, path := range d.files {
		if d.isStopped() {
			break
		}
		n, err := d.replayFile(ctx, path)
		emitted += n
		if err != nil {
			d.log.Warn().Err(err).Str("file", path).Msg("digi-ascii replay: file error, skipping rest of file")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	logDone(d.log, "digi_ascii", len(d.files), emitted)
	return nil
}

func (d *DigiASCIIReplayer) replayFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	emitted := 0
	var buf []byte
	chunk := make([]byte, digiReadChunk)
	eof := false

	for {
		if !d.waitIfPaused() {
			return emitted, nil
		}

		for {
			loc := ooiTSRecord.FindSubmatchIndex(buf)
			if loc == nil {
				break
			}
			tsStr := string(buf[loc[2]:loc[3]])
			body := append([]byte(nil), buf[loc[4]:loc[5]]...)
			buf = buf[loc[1]:]

			ntp, perr := paproto.ParseISOToNTP(tsStr)
			if perr != nil {
				d.log.Warn().Str("timestamp", tsStr).Msg("digi-ascii replay: bad timestamp, skipping record")
			} else {
				pkts, cerr := paproto.Create(body, paproto.FromInstrument, ntp)
				if cerr == nil {
					d.r.GotData(pkts)
					emitted += len(pkts)
				}
			}

			if !d.waitIfPaused() {
				return emitted, nil
			}
			if !yield(ctx) {
				return emitted, nil
			}
		}

		if eof {
			return emitted, nil
		}

		n, rerr := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > digiBufferCap {
				buf = buf[len(buf)-digiBufferCap:]
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				eof = true
				continue
			}
			return emitted, rerr
		}
	}
}
