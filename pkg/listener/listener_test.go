package listener

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestListenReportsEphemeralPort(t *testing.T) {
	var reported atomic.Int32
	var accepted atomic.Int32

	l, err := Listen(zerolog.Nop(), "data", "127.0.0.1:0", func(conn net.Conn) {
		accepted.Add(1)
		conn.Close()
	}, func(port int) {
		reported.Store(int32(port))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if reported.Load() == 0 {
		t.Fatal("expected a nonzero reported port")
	}
	if l.Port() != int(reported.Load()) {
		t.Fatalf("Port() %d does not match reported port %d", l.Port(), reported.Load())
	}

	conn, err := net.Dial("tcp", l.ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if accepted.Load() == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("connection was never accepted")
}

func TestCloseStopsAcceptLoop(t *testing.T) {
	l, err := Listen(zerolog.Nop(), "command", "127.0.0.1:0", func(conn net.Conn) {
		conn.Close()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	addr := l.ln.Addr().String()
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := net.Dial("tcp", addr); err == nil {
		t.Fatal("expected dial to a closed listener to fail")
	}
}
