package broker_test

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jabolina/mtl/pkg/mtl/broker"
	"github.com/jabolina/mtl/pkg/mtl/client"
	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/jabolina/mtl/pkg/mtl/frame"
)

func startBroker(t *testing.T, cfg broker.Config) (addr string, shutdown func()) {
	t.Helper()
	b := broker.New(cfg, definition.NewLogrusLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, "127.0.0.1:0")
	}()

	select {
	case <-b.Ready():
	case err := <-done:
		t.Fatalf("broker failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broker to start")
	}

	return b.Addr().String(), func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broker shutdown")
		}
	}
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	return host, port
}

func newClient(t *testing.T, host string, serverPort, localPort int) *client.Service {
	t.Helper()
	svc := client.NewService(definition.NewLogrusLogger())
	if err := svc.Connect(client.ConnectOptions{
		Hostname:   host,
		ServerPort: serverPort,
		LocalPort:  localPort,
	}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	svc.Start(context.Background())
	return svc
}

func TestIntegration_HappyPath(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr, shutdown := startBroker(t, broker.DefaultConfig())
	defer shutdown()
	host, port := splitHostPort(t, addr)

	type delivery struct {
		src  frame.Addr
		data []byte
	}
	received := make(chan delivery, 1)

	y := newClient(t, host, port, 48101)
	defer y.Stop()
	y.SetListener(func(src frame.Addr, data []byte) {
		cp := append([]byte(nil), data...)
		received <- delivery{src: src, data: cp}
	}, nil)

	x := newClient(t, host, port, 48100)
	defer x.Stop()

	x.Schedule(frame.Addr{IP: [4]byte{127, 0, 0, 1}, Port: 48101}, []byte("hi"))

	select {
	case d := <-received:
		if string(d.data) != "hi" {
			t.Fatalf("expected payload %q, got %q", "hi", d.data)
		}
		if d.src.Port != 48100 {
			t.Fatalf("expected src port 48100, got %d", d.src.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestIntegration_UnknownDestinationNacksTargetDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr, shutdown := startBroker(t, broker.DefaultConfig())
	defer shutdown()
	host, port := splitHostPort(t, addr)

	type failure struct {
		err error
		f   frame.Frame
	}
	failed := make(chan failure, 1)

	x := newClient(t, host, port, 48200)
	defer x.Stop()
	x.SetListener(nil, func(err error, original frame.Frame) {
		failed <- failure{err: err, f: original}
	})

	x.Schedule(frame.Addr{IP: [4]byte{127, 0, 0, 1}, Port: 49999}, []byte("nobody-home"))

	select {
	case f := <-failed:
		if f.err != client.ErrTargetDown {
			t.Fatalf("expected ErrTargetDown, got %v", f.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for target-down nack")
	}
}

// TestIntegration_GracefulShutdownFlushesPendingMessages exercises §8
// scenario 6: the broker must forward every message still sitting in a
// Peer's out_queue at shutdown time before Run returns, rather than
// dropping the backlog when the termination signal arrives.
func TestIntegration_GracefulShutdownFlushesPendingMessages(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// A generous per-peer buffer and a deliberately slow forwarding rate
	// keep most of the 12 messages sitting in X's out_queue, unforwarded,
	// at the moment shutdown is requested - reproducing §8 scenario 6.
	cfg := broker.DefaultConfig()
	cfg.PerPeerBuffer = 20
	cfg.RateLimiter = &broker.RateLimiterConfig{
		MaxRate: 20,
		MinRate: 20,
		Step:    0,
		Period:  time.Second,
	}
	addr, shutdown := startBroker(t, cfg)
	host, port := splitHostPort(t, addr)

	const n = 12
	got := make(chan string, n)

	y := newClient(t, host, port, 48401)
	defer y.Stop()
	y.SetListener(func(_ frame.Addr, data []byte) {
		got <- string(append([]byte(nil), data...))
	}, nil)

	x := newClient(t, host, port, 48400)
	defer x.Stop()

	for i := 0; i < n; i++ {
		x.Schedule(frame.Addr{IP: [4]byte{127, 0, 0, 1}, Port: 48401}, []byte{byte(i)})
	}

	// Give X's Sender time to put all n frames on the wire and the
	// broker's Handler time to enqueue them, so the backlog genuinely
	// exists in the broker before shutdown is requested.
	time.Sleep(50 * time.Millisecond)

	// Shut the broker down mid-backlog; it must still flush every queued
	// message to Y before Run returns, never drop the tail (§5, §8#6).
	shutdown()

	for i := 0; i < n; i++ {
		select {
		case s := <-got:
			if len(s) != 1 || s[0] != byte(i) {
				t.Fatalf("message %d out of order or corrupted: got %v", i, []byte(s))
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for message %d to flush before shutdown completed", i)
		}
	}
}

func TestIntegration_OrderedDeliveryAcrossManyMessages(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr, shutdown := startBroker(t, broker.DefaultConfig())
	defer shutdown()
	host, port := splitHostPort(t, addr)

	const n = 25
	got := make(chan string, n)

	y := newClient(t, host, port, 48301)
	defer y.Stop()
	y.SetListener(func(_ frame.Addr, data []byte) {
		got <- string(append([]byte(nil), data...))
	}, nil)

	x := newClient(t, host, port, 48300)
	defer x.Stop()

	for i := 0; i < n; i++ {
		x.Schedule(frame.Addr{IP: [4]byte{127, 0, 0, 1}, Port: 48301}, []byte{byte(i)})
	}

	for i := 0; i < n; i++ {
		select {
		case s := <-got:
			if len(s) != 1 || s[0] != byte(i) {
				t.Fatalf("message %d out of order: got %v", i, []byte(s))
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}
