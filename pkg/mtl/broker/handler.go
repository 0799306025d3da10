package broker

import (
	"errors"
	"io"
	"net"

	"github.com/jabolina/mtl/pkg/mtl/frame"
)

// handleConn is the Peer Handler contract from §4.2: allocate a Peer,
// register it, then loop reading exactly one frame at a time until EOF
// or a fatal I/O error.
func (b *Broker) handleConn(conn net.Conn) {
	addr, err := peerAddr(conn)
	if err != nil {
		b.log.Warnf("rejecting connection, cannot resolve peer address: %v", err)
		_ = conn.Close()
		return
	}

	p := newPeer(conn, addr, b.cfg.PerPeerBuffer, b.log.With("peer", addr.String()))
	b.directory.Put(p)
	b.metrics.peerConnected()
	defer func() {
		b.metrics.peerDisconnected()
	}()

	buf := make([]byte, frame.Size)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				p.log.Warnf("read error, closing connection: %v", err)
			}
			break
		}

		var f frame.Frame
		if err := frame.Decode(buf, &f); err != nil {
			p.log.Errorf("failed decoding frame: %v", err)
			break
		}
		b.handleFrame(p, &f)
	}

	p.markEOF()
	p.waitDrained()
	b.directory.Remove(p)
	_ = conn.Close()
}

// peerAddr extracts the IPv4 + port a Peer is identified by, from the
// connection's observed remote address (§3: "Peer... advertised address
// and port, from getpeername at accept").
func peerAddr(conn net.Conn) (frame.Addr, error) {
	tcp, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return frame.Addr{}, errors.New("connection is not TCP")
	}
	ip4 := tcp.IP.To4()
	if ip4 == nil {
		return frame.Addr{}, errors.New("peer address is not IPv4")
	}
	var a frame.Addr
	copy(a.IP[:], ip4)
	a.Port = uint16(tcp.Port)
	return a, nil
}

// handleFrame implements the per-frame validation and enqueue steps of
// §4.2, steps 1-5.
func (b *Broker) handleFrame(p *Peer, f *frame.Frame) {
	f.SrcAddr = p.addr
	f.Flags = frame.OK

	outOfOrder := false
	if !p.seenFirst {
		p.seenFirst = true
		p.expectedCount = f.Count
	} else {
		want := frame.NextCount(p.expectedCount)
		if f.Count != want {
			outOfOrder = true
		}
	}

	if outOfOrder {
		f.Flags = frame.InvalidOrder
		b.metrics.nack(frame.InvalidOrder)
		b.nackTo(f)
		return
	}
	p.expectedCount = f.Count

	p.outMu.Lock()
	for p.ring.len() >= b.cfg.PerPeerBuffer {
		p.notFull.Wait()
	}
	idx, slot, ok := p.ring.acquire()
	if !ok {
		// Should not happen given BUF+2 sizing; degrade to a NACK
		// rather than block forever or panic.
		p.outMu.Unlock()
		f.Flags = frame.BufferFull
		b.metrics.nack(frame.BufferFull)
		b.nackTo(f)
		return
	}
	*slot = *f
	p.ring.enqueue(idx)
	wasEmpty := p.ring.len() == 1
	becameActive := wasEmpty && !p.inActiveQueue
	if becameActive {
		p.inActiveQueue = true
	}
	p.outMu.Unlock()

	if becameActive {
		b.activeQueue.pushBack(p)
	}
}
