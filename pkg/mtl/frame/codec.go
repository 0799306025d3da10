package frame

import (
	"encoding/binary"
	"fmt"
)

// Encode writes f into buf in network byte order, per the §3 field table.
// buf must be at least Size bytes; Encode never allocates. A frame whose
// Len exceeds DataLength is rejected rather than silently truncated here
// (truncation, if wanted, happens earlier via SetPayload) — this keeps
// Encode a pure, total function over well-formed frames.
func Encode(f *Frame, buf []byte) error {
	if len(buf) < Size {
		return fmt.Errorf("frame: encode buffer too small: have %d, need %d", len(buf), Size)
	}
	if int(f.Len) > DataLength {
		return fmt.Errorf("frame: len %d exceeds max payload %d", f.Len, DataLength)
	}

	off := 0
	copy(buf[off:off+4], f.SrcAddr.IP[:])
	off += 4
	binary.BigEndian.PutUint16(buf[off:off+2], f.SrcAddr.Port)
	off += 2
	copy(buf[off:off+4], f.DestAddr.IP[:])
	off += 4
	binary.BigEndian.PutUint16(buf[off:off+2], f.DestAddr.Port)
	off += 2
	buf[off] = uint8(f.Flags)
	off++
	binary.BigEndian.PutUint16(buf[off:off+2], f.Count)
	off += 2
	binary.BigEndian.PutUint16(buf[off:off+2], f.Len)
	off += 2

	copy(buf[off:off+DataLength], f.Data[:f.Len])
	for i := off + int(f.Len); i < off+DataLength; i++ {
		buf[i] = 0
	}
	return nil
}

// Decode is the inverse of Encode: it populates f from the Size bytes in
// buf. decode(encode(m)) == m for every field, including zero-padding of
// unused Data bytes.
func Decode(buf []byte, f *Frame) error {
	if len(buf) < Size {
		return fmt.Errorf("frame: decode buffer too small: have %d, need %d", len(buf), Size)
	}

	off := 0
	copy(f.SrcAddr.IP[:], buf[off:off+4])
	off += 4
	f.SrcAddr.Port = binary.BigEndian.Uint16(buf[off : off+2])
	off += 2
	copy(f.DestAddr.IP[:], buf[off:off+4])
	off += 4
	f.DestAddr.Port = binary.BigEndian.Uint16(buf[off : off+2])
	off += 2
	f.Flags = Flag(buf[off])
	off++
	f.Count = binary.BigEndian.Uint16(buf[off : off+2])
	off += 2
	f.Len = binary.BigEndian.Uint16(buf[off : off+2])
	off += 2

	if int(f.Len) > DataLength {
		f.Len = DataLength
	}
	copy(f.Data[:], buf[off:off+DataLength])
	return nil
}
