package frame

import (
	"bytes"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	var f Frame
	f.SrcAddr = Addr{IP: [4]byte{10, 0, 0, 1}, Port: 48000}
	f.DestAddr = Addr{IP: [4]byte{10, 0, 0, 2}, Port: 48001}
	f.Flags = InvalidOrder
	f.Count = 42
	f.SetPayload([]byte("hello, mtl"))

	var buf [Size]byte
	if err := Encode(&f, buf[:]); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Frame
	if err := Decode(buf[:], &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded != f {
		t.Fatalf("round-trip mismatch:\n  got  %#v\n  want %#v", decoded, f)
	}
}

func TestCodec_ZeroPadsUnusedData(t *testing.T) {
	var f Frame
	f.SetPayload([]byte("ab"))
	for i := range f.Data {
		if i >= 2 {
			f.Data[i] = 0xFF // simulate stale bytes from a reused slot
		}
	}
	f.Len = 2

	var buf [Size]byte
	if err := Encode(&f, buf[:]); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dataStart := 4 + 2 + 4 + 2 + 1 + 2 + 2
	if !bytes.Equal(buf[dataStart+2:], make([]byte, DataLength-2)) {
		t.Fatalf("expected zero padding beyond len, got %v", buf[dataStart:dataStart+DataLength])
	}
}

func TestCodec_RejectsShortBuffers(t *testing.T) {
	var f Frame
	if err := Encode(&f, make([]byte, Size-1)); err == nil {
		t.Fatalf("expected error encoding into undersized buffer")
	}
	if err := Decode(make([]byte, Size-1), &f); err == nil {
		t.Fatalf("expected error decoding from undersized buffer")
	}
}

func TestNextCount_WrapsModCountMax(t *testing.T) {
	if got := NextCount(CountMax - 1); got != 0 {
		t.Fatalf("expected wrap to 0, got %d", got)
	}
	if got := NextCount(5); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
}

func TestFlag_String(t *testing.T) {
	cases := []struct {
		f    Flag
		want string
	}{
		{OK, "OK"},
		{BufferFull, "BUFFER_FULL"},
		{InvalidOrder, "INVALID_ORDER"},
		{TargetDown, "TARGET_DOWN"},
		{BufferFull | TargetDown, "BUFFER_FULL|TARGET_DOWN"},
	}
	for _, c := range cases {
		if got := c.f.String(); got != c.want {
			t.Errorf("Flag(%d).String() = %q, want %q", c.f, got, c.want)
		}
	}
}
