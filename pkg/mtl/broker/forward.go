package broker

import "github.com/jabolina/mtl/pkg/mtl/frame"

// forward implements §4.5: resolve the destination, write the frame
// under its socket-write lock, or NACK with TARGET_DOWN if there is no
// such connected peer. The directory lock is only held long enough to
// resolve and pin the destination (the returned *Peer keeps it alive for
// the duration of the write even if it disconnects concurrently and is
// removed from the directory).
func (b *Broker) forward(f *frame.Frame) {
	dest, ok := b.directory.Get(f.DestAddr)
	if !ok {
		f.Flags = frame.TargetDown
		b.metrics.nack(frame.TargetDown)
		b.nackTo(f)
		return
	}

	var buf [frame.Size]byte
	if err := frame.Encode(f, buf[:]); err != nil {
		b.log.Errorf("failed encoding frame for forward: %v", err)
		return
	}

	dest.writeMu.Lock()
	n, err := dest.conn.Write(buf[:])
	dest.writeMu.Unlock()
	if err != nil {
		b.log.Warnf("forward to %s failed, leaving for its own read-side teardown: %v", dest.addr, err)
		return
	}
	if n != frame.Size {
		b.log.Warnf("short write forwarding to %s: %d/%d bytes", dest.addr, n, frame.Size)
		return
	}
	b.metrics.forwarded()
}
