package reconnect

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunConnectsAndInvokesHandler(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		conn.Read(buf)
	}()

	var calls atomic.Int32
	handled := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := New(zerolog.Nop(), ln.Addr().String(), func(ctx context.Context, conn net.Conn) error {
		calls.Add(1)
		conn.Write([]byte("hi\n"))
		handled <- struct{}{}
		<-ctx.Done()
		return nil
	})

	go d.Run(ctx)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one handler invocation, got %d", calls.Load())
	}
}

func TestRunRetriesWithBackoffOnDialFailure(t *testing.T) {
	// Bind and immediately close to get a port nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	// Shrink the backoff so the test completes quickly without waiting out
	// the real 1s initial delay three times over.
	d := New(zerolog.Nop(), addr, func(ctx context.Context, conn net.Conn) error { return nil },
		WithBackoff(time.Millisecond, 4*time.Millisecond))
	var dials atomic.Int32
	var nd net.Dialer
	d.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		return nd.DialContext(ctx, network, addr)
	}

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
	if dials.Load() < 2 {
		t.Fatalf("expected repeated dial attempts after failures, got %d", dials.Load())
	}
}

func TestNextDelayCapsAtMaxDelay(t *testing.T) {
	d := New(zerolog.Nop(), "127.0.0.1:0", nil, WithBackoff(time.Second, 4*time.Second))
	if got := d.nextDelay(3 * time.Second); got != 4*time.Second {
		t.Fatalf("expected delay capped at 4s, got %v", got)
	}
	if got := d.nextDelay(4 * time.Second); got != 4*time.Second {
		t.Fatalf("expected MaxDelay to be a fixed point, got %v", got)
	}
}

func TestReconnectsAfterHandlerReturns(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := New(zerolog.Nop(), ln.Addr().String(), func(ctx context.Context, conn net.Conn) error {
		calls.Add(1)
		return nil
	}, WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	go d.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls.Load() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least 2 reconnect attempts, got %d", calls.Load())
}
