//go:build darwin

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

	// Darwin's TCP_KEEPALIVE/TCP_KEEPINTVL option numbers, matching
	// protocols.py's hardcoded Darwin constants (socket.SOL_TCP lacks
	// these names on macOS).
	tcpKeepAlive = 0x10
	tcpKeepIntvl = 0x101
)

// configureKeepalive sets TCP_NODELAY and Darwin-specific keep-alive idle
// and interval socket options, mirroring protocols.py's configure_tcp.
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
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, tcpKeepAlive, int(keepaliveIdle.Seconds())); err != nil {
			log.Debug().Err(err).Msg("could not set TCP_KEEPALIVE")
		}
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, tcpKeepIntvl, int(keepaliveIntvl.Seconds())); err != nil {
			log.Debug().Err(err).Msg("could not set TCP_KEEPINTVL")
		}
	})
	if ctrlErr != nil {
		log.Debug().Err(ctrlErr).Msg("keepalive syscall control failed")
	}
}
