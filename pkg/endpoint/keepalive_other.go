//go:build !linux && !darwin

package endpoint

import (
	"net"

	"github.com/rs/zerolog"
)

// configureKeepalive sets TCP_NODELAY and basic keep-alive on platforms
// without a fine-grained idle/interval socket option (protocols.py only
// special-cases Darwin and Linux; elsewhere Twisted's setTcpKeepAlive is
// the only call made).
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
}
