// Package logger implements the two daily-rotating router endpoints (C9):
// a binary DATALOGGER sink that receives each packet in full framed form,
// and an ASCII LOGGER sink that receives one human-readable line per
// packet. Both attach to a *router.Router as an ordinary ClientHandle; the
// router itself has no notion of files or rotation.
//
// Grounded on ooi_port_agent/packet_logger.py's PacketLogger /
// RotatingFileHandler-style daily files, adapted to this pack's use of
// github.com/klauspost/compress/gzip for compressing rotated-out files
// (pkg/atlas/server.go's harZ := gzip.NewWriter pattern).
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// dayLayout names a rotated file by the UTC day it was opened, matching
// packet_logger.py's "%Y%m%d" suffix convention.
const dayLayout = "20060102"

// Logger is a single daily-rotating append-only file sink. It implements
// router.ClientHandle (Write(data []byte)), so it registers directly as a
// driver-less, never-deregistered client under paproto.Logger or
// paproto.Datalogger.
type Logger struct {
	log  zerolog.Logger
	dir  string
	name string
	ext  string

	mu     sync.Mutex
	file   *os.File
	day    string
	closed bool
}

// New opens (or creates) dir/name.YYYYMMDD.ext for today's UTC day,
// rotating to a fresh file whenever a Write crosses a UTC day boundary. The
// previous day's file is gzip-compressed in the background after rotation.
//
// ext is ".log" for the ASCII LOGGER and ".datalog" for the binary
// DATALOGGER, giving "<name>.<day>.log" / "<name>.<day>.datalog" files.
func New(log zerolog.Logger, dir, name, ext string) (*Logger, error) {
	l := &Logger{
		log:  log.With().Str("component", "logger").Str("file", name+ext).Logger(),
		dir:  dir,
		name: name,
		ext:  ext,
	}
	if err := l.rotate(time.Now().UTC()); err != nil {
		return nil, err
	}
	return l, nil
}

// Write implements router.ClientHandle. Errors are logged, not returned
// (the router's fan-out loop has no error channel — a logger that can't
// write to disk should not take down packet delivery to other clients).
func (l *Logger) Write(data []byte) {
	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if now.Format(dayLayout) != l.day {
		if err := l.rotateLocked(now); err != nil {
			l.log.Warn().Err(err).Msg("rotate failed, continuing with existing file")
		}
	}
	if _, err := l.file.Write(data); err != nil {
		l.log.Warn().Err(err).Msg("write failed")
	}
}

func (l *Logger) rotate(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked(now)
}

// rotateLocked closes the current file (if any), queues it for background
// gzip compression, and opens a new file for now's UTC day. Caller must
// hold l.mu.
func (l *Logger) rotateLocked(now time.Time) error {
	prev := l.file
	prevDay := l.day

	day := now.Format(dayLayout)
	path := filepath.Join(l.dir, fmt.Sprintf("%s.%s%s", l.name, day, l.ext))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logger: open %s: %w", path, err)
	}

	l.file = f
	l.day = day

	if prev != nil {
		prevPath := filepath.Join(l.dir, fmt.Sprintf("%s.%s%s", l.name, prevDay, l.ext))
		go compressAndClose(l.log, prev, prevPath)
	}
	return nil
}

// compressAndClose gzips path in place (path -> path+".gz", original
// removed on success) and closes f. Run as a background goroutine so
// rotation never blocks the reactor's write path.
func compressAndClose(log zerolog.Logger, f *os.File, path string) {
	defer f.Close()

	in, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("compress: reopen failed")
		return
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("compress: create gz failed")
		return
	}

	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := gw.Close()
	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil || closeErr != nil {
		log.Warn().Err(copyErr).Msg("compress: failed, leaving uncompressed file in place")
		os.Remove(path + ".gz")
		return
	}
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("compress: could not remove original after gzip")
	}
}

// Close flushes and closes the current file. It does not compress it; only
// rotated-out (no longer current) files are compressed.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
