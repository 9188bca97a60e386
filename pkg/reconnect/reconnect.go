// Package reconnect implements the sole component that speaks outward TCP
// for instrument connections: dial, hand the connection to a caller
// supplied handler, and on disconnect or dial failure retry with
// exponential backoff capped at MaxDelay.
//
// Grounded on ooi_port_agent/factories.py's ReconnectingClientFactory
// (maxDelay = MAX_RECONNECT_DELAY, resetDelay() called from buildProtocol
// on every successful connect) and on the backoff shape of
// Atsika-aznet's AdaptivePoll (poll.go): a current interval that doubles
// toward a ceiling and resets on activity.
package reconnect

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// MaxDelay is the exponential backoff ceiling, matching common.py's
// MAX_RECONNECT_DELAY (240 seconds).
const MaxDelay = 240 * time.Second

const initialDelay = 1 * time.Second

const backoffFactor = 2

// Handler is invoked synchronously for each successful connection. It
// should block for the life of the connection and return when the
// connection ends; Dialer closes conn once Handler returns.
type Handler func(ctx context.Context, conn net.Conn) error

// Dialer reconnects to a single TCP endpoint, backing off exponentially
// between attempts and resetting its backoff on every successful connect.
type Dialer struct {
	log     zerolog.Logger
	addr    string
	handler Handler

	initialDelay time.Duration
	maxDelay     time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Option configures a Dialer at construction time.
type Option func(*Dialer)

// WithBackoff overrides the default initial delay (1s) and ceiling (240s).
// Intended for tests; production callers should use the defaults so the
// ceiling matches common.py's MAX_RECONNECT_DELAY.
func WithBackoff(initial, max time.Duration) Option {
	return func(d *Dialer) {
		d.initialDelay = initial
		d.maxDelay = max
	}
}

// New creates a Dialer for addr (host:port). handler is run once per
// connection.
func New(log zerolog.Logger, addr string, handler Handler, opts ...Option) *Dialer {
	var nd net.Dialer
	d := &Dialer{
		log:          log.With().Str("component", "reconnect").Str("addr", addr).Logger(),
		addr:         addr,
		handler:      handler,
		initialDelay: initialDelay,
		maxDelay:     MaxDelay,
		dial:         nd.DialContext,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run dials addr in a loop until ctx is canceled. Each successful
// connection's Handler runs to completion before the next dial attempt.
func (d *Dialer) Run(ctx context.Context) {
	delay := d.initialDelay
	for ctx.Err() == nil {
		conn, err := d.dial(ctx, "tcp", d.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Warn().Err(err).Dur("retry_in", delay).Msg("dial failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = d.nextDelay(delay)
			continue
		}

		d.log.Info().Msg("connected")
		delay = d.initialDelay // resetDelay(): any successful connect forgives prior failures

		err = d.handler(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.log.Warn().Err(err).Msg("connection ended")
		} else {
			d.log.Info().Msg("connection closed")
		}

		if !sleepCtx(ctx, delay) {
			return
		}
		delay = d.nextDelay(delay)
	}
}

func (d *Dialer) nextDelay(cur time.Duration) time.Duration {
	cur *= backoffFactor
	if cur > d.maxDelay {
		cur = d.maxDelay
	}
	return cur
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
