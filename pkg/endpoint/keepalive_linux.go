//go:build linux

package endpoint

import (
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	keepaliveIdle  = 100 * time.Second
	keepaliveIntvl = 5 * time.Second
)

// configureKeepalive sets TCP_NODELAY and Linux-specific keep-alive idle and
// interval socket options, mirroring protocols.py's configure_tcp.
func configureKeepalive(conn net.Conn, log zerolog.Logger) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		log.Debug().Err(err).Msg("could not set TCP_NODELAY")
	}
	if err := tc.SetKeepAlive(true); err != nil {
		log.Debug().Err(err).Msg("could not enable TCP keepalive")
	}

	raw, err := tc.SyscallConn()
	if err != nil {
		log.Debug().Err(err).Msg("could not access raw conn for keepalive tuning")
		return
	}
	ctrlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_TCP, unix.TCP_KEEPIDLE, int(keepaliveIdle.Seconds())); err != nil {
			log.Debug().Err(err).Msg("could not set TCP_KEEPIDLE")
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_TCP, unix.TCP_KEEPINTVL, int(keepaliveIntvl.Seconds())); err != nil {
			log.Debug().Err(err).Msg("could not set TCP_KEEPINTVL")
		}
	})
	if ctrlErr != nil {
		log.Debug().Err(ctrlErr).Msg("keepalive syscall control failed")
	}
}
