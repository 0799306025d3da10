package broker

import "github.com/jabolina/mtl/pkg/mtl/frame"

// nackTo implements §4.3: f already carries its error flags and its
// original src/dest; the NACK destination is the original *source*,
// looked up by src_addr+src_port. If the source has disconnected, the
// NACK is dropped silently — there is no recipient to inform, and a
// single NACK transmission is at-most-once, never queued internally.
func (b *Broker) nackTo(f *frame.Frame) {
	if f.Flags == frame.OK {
		// A frame with no error flag is not being rejected; never NACK
		// it.
		return
	}

	target, ok := b.directory.Get(f.SrcAddr)
	if !ok {
		// No recipient to inform; drop silently.
		return
	}

	var buf [frame.Size]byte
	if err := frame.Encode(f, buf[:]); err != nil {
		b.log.Errorf("failed encoding nack: %v", err)
		return
	}

	target.writeMu.Lock()
	defer target.writeMu.Unlock()
	n, err := target.conn.Write(buf[:])
	if err != nil {
		b.log.Warnf("failed writing nack to %s: %v", target.addr, err)
		return
	}
	if n != frame.Size {
		b.log.Warnf("short write on nack to %s: %d/%d bytes", target.addr, n, frame.Size)
	}
}
