package broker

import (
	"net"
	"sync"

	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/jabolina/mtl/pkg/mtl/frame"
)

// Peer is the broker-side record for one open connection. It owns the
// connection's write side (reads belong to the Handler goroutine), the
// bounded out_queue of messages this peer has sent that await forwarding
// to their destinations, and the bookkeeping needed to enforce
// per-connection sequencing.
//
// Invariant: a Peer is a member of the Active-Peer Queue iff its
// out_queue is non-empty. That invariant is maintained jointly by
// Broker.handleFrame (on append) and Scheduler.run (on drain); see
// handler.go and scheduler.go for the mutation points.
type Peer struct {
	conn net.Conn
	addr frame.Addr

	log definition.Logger

	// outMu guards ring, inActiveQueue and removed-waiters.
	outMu   sync.Mutex
	ring    *ring
	notFull *sync.Cond // signaled whenever a message leaves out_queue

	// inActiveQueue is true while this Peer is linked into the broker's
	// Active-Peer Queue. Guarded by outMu.
	inActiveQueue bool

	// writeMu serializes writes to conn, independent of outMu: the
	// Scheduler must never hold outMu across the socket write (§4.4).
	writeMu sync.Mutex

	// sequencing state, touched only by the Handler goroutine for this
	// connection — no lock needed.
	seenFirst     bool
	expectedCount uint16

	// draining is closed once the Handler has observed EOF; destruction
	// waits for both draining and an empty out_queue.
	draining chan struct{}
}

func newPeer(conn net.Conn, addr frame.Addr, bufCap int, log definition.Logger) *Peer {
	p := &Peer{
		conn:     conn,
		addr:     addr,
		log:      log,
		ring:     newRing(bufCap),
		draining: make(chan struct{}),
	}
	p.notFull = sync.NewCond(&p.outMu)
	return p
}

// Addr returns the peer's directory key (advertised IPv4 + port, as
// observed by the broker at accept time via the connection's remote
// address — see the design notes on advertised-vs-observed addressing).
func (p *Peer) Addr() frame.Addr { return p.addr }

// markEOF signals that the Handler's read loop has returned, so
// destruction may proceed once out_queue drains.
func (p *Peer) markEOF() {
	close(p.draining)
}

// CloseConn half-closes the read side of the underlying socket. Used
// during broker shutdown (§5) to unblock a Handler's blocking read with
// an error instead of waiting indefinitely for the remote end to
// disconnect first. Only the read side is closed, deliberately: the
// Scheduler may still have pending out_queue entries addressed to this
// Peer as a destination, and §8 scenario 6 requires those to still be
// forwarded (or NACKed) before the broker exits, which needs the write
// side to stay open until this Peer's own drain-before-destroy
// teardown closes the whole connection. Falls back to a full close for
// any net.Conn that isn't a *net.TCPConn (cannot half-close).
func (p *Peer) CloseConn() {
	if tc, ok := p.conn.(*net.TCPConn); ok {
		_ = tc.CloseRead()
		return
	}
	_ = p.conn.Close()
}

// waitDrained blocks until out_queue is empty. Called by the Handler
// after EOF, before the Peer is removed from the directory (§4.2
// drain-before-destroy).
func (p *Peer) waitDrained() {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	for p.ring.len() > 0 {
		p.notFull.Wait()
	}
}
