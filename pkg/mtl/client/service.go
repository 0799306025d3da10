// Package client implements the MTL client library: a Service owning
// one TCP connection to a broker, a Sender draining the ordered retry
// queue, and a Receiver demultiplexing deliveries and NACKs (§2, §4.7-
// §4.9, §6 client library surface).
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/jabolina/mtl/pkg/mtl/frame"
	"golang.org/x/sync/errgroup"
)

// MaxOutBuffer is the default combined out_queue+nacked_queue bound
// (§6).
const MaxOutBuffer = 128

// Listener receives normal deliveries.
type Listener func(src frame.Addr, data []byte)

// ErrorListener receives protocol errors that cannot be retried
// transparently (currently just TARGET_DOWN).
type ErrorListener func(err error, original frame.Frame)

// ConnectOptions names the broker to dial and the local port this
// client is known by (§6: "the local listen port and the advertised
// port must coincide").
type ConnectOptions struct {
	Hostname   string
	ServerPort int
	LocalPort  int
}

// Service is the client-side symmetric counterpart to the broker: one
// connection, a Sender, a Receiver, and the ordered queue pair.
type Service struct {
	log definition.Logger

	conn    net.Conn
	writeMu sync.Mutex

	outbox *outbox
	sender *sender
	recv   *receiver

	listenerMu sync.RWMutex
	onDeliver  Listener
	onError    ErrorListener

	group    *errgroup.Group
	cancel   context.CancelFunc
	connDead chan struct{}
	deadOnce sync.Once

	stopped atomic.Bool
}

// markConnDead is called once the Sender or Receiver observes the
// connection has failed, so Stop's drain wait does not block forever on
// a socket that will never deliver another NACK.
func (s *Service) markConnDead() {
	s.deadOnce.Do(func() { close(s.connDead) })
}

// NewService creates a Service. It does not connect; call Connect.
func NewService(log definition.Logger) *Service {
	if log == nil {
		log = definition.NewLogrusLogger()
	}
	s := &Service{
		log:      log,
		outbox:   newOutbox(MaxOutBuffer),
		connDead: make(chan struct{}),
	}
	s.sender = newSender(s)
	s.recv = newReceiver(s)
	return s
}

// Connect dials the broker. Per §6, the local port the client binds to
// must equal the port it advertises to peers, since the broker learns
// the source address from the connection itself.
func (s *Service) Connect(opts ConnectOptions) error {
	localAddr := &net.TCPAddr{Port: opts.LocalPort}
	dialer := net.Dialer{LocalAddr: localAddr}
	conn, err := dialer.Dial("tcp", fmt.Sprintf("%s:%d", opts.Hostname, opts.ServerPort))
	if err != nil {
		return fmt.Errorf("client: connect failed: %w", err)
	}
	s.conn = conn
	return nil
}

// SetListener registers the callback invoked for every normal delivery,
// and optionally one invoked for terminal protocol errors.
func (s *Service) SetListener(onDeliver Listener, onError ErrorListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.onDeliver = onDeliver
	s.onError = onError
}

func (s *Service) listener() Listener {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return s.onDeliver
}

func (s *Service) errorListener() ErrorListener {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return s.onError
}

// Start launches the Sender and Receiver tasks. Must be called after
// Connect.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	s.group = group

	group.Go(func() error {
		err := s.sender.run(gctx)
		if err != nil {
			s.markConnDead()
		}
		return err
	})
	group.Go(func() error {
		err := s.recv.run(gctx)
		if err != nil {
			s.markConnDead()
		}
		return err
	})
}

// Schedule implements §4.9: stamp src to zero (the broker fills it in),
// clear flags, set the payload, assign the next sequence number, and
// enqueue — blocking if out_queue+nacked_queue is already at
// MaxOutBuffer.
func (s *Service) Schedule(dest frame.Addr, data []byte) {
	var f frame.Frame
	f.SrcAddr = frame.Addr{}
	f.DestAddr = dest
	f.Flags = frame.OK
	f.SetPayload(data)
	s.outbox.schedule(f)
}

// Pending returns the combined out_queue+nacked_queue length.
func (s *Service) Pending() int {
	return s.outbox.pending()
}

// Stop implements §5's client-side cooperative shutdown: wait for both
// queues to drain (double-checked against late-arriving NACKs) before
// tearing down the socket.
func (s *Service) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	drained := make(chan struct{})
	go func() {
		s.outbox.waitDrained()
		close(drained)
	}()
	select {
	case <-drained:
	case <-s.connDead:
		// The connection is already gone; nothing will ever drain the
		// remaining queue entries further.
	}

	// Unblocks a Sender parked in outbox.next with nothing left to send,
	// and any late waitDrained goroutine from the connDead race above.
	s.outbox.close()

	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.group != nil {
		_ = s.group.Wait()
	}
}
