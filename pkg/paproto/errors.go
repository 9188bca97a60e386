package paproto

import "errors"

var (
	// ErrInvalidHeader is returned when a header is constructed with both an
	// explicit NTP time and explicit (TSHigh, TSLow) parts, or with neither.
	ErrInvalidHeader = errors.New("paproto: header requires exactly one of packet time or (ts_high, ts_low)")

	// ErrBadTimestamp is returned when an ISO-8601 timestamp string cannot be
	// parsed into an NTP time.
	ErrBadTimestamp = errors.New("paproto: malformed ISO-8601 timestamp")

	// ErrUnknownCommand indicates a command-port line whose first token has
	// no registered callback.
	ErrUnknownCommand = errors.New("paproto: unknown command")

	// ErrEmptyCommand indicates a blank line on the command port.
	ErrEmptyCommand = errors.New("paproto: empty command")

	// ErrShortBuffer describes a buffer that ended before a complete packet.
	// StreamDecoder.Next does not return it: a trailing partial packet there
	// is discarded and reported as io.EOF.
	ErrShortBuffer = errors.New("paproto: buffer ended before complete packet")
)
