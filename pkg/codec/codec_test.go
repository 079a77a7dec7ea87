package codec

import (
	"encoding/binary"
	"testing"
)

func TestByteViewAccessors(t *testing.T) {
	b := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 'h', 'i', 0}
	v := NewByteView(b, binary.LittleEndian)

	if got, err := v.Uint32At(0); err != nil || got != 1 {
		t.Fatalf("Uint32At(0) = %d, %v", got, err)
	}
	if got, err := v.Uint16At(4); err != nil || got != 2 {
		t.Fatalf("Uint16At(4) = %d, %v", got, err)
	}
	if s, err := v.CString(6); err != nil || s != "hi" {
		t.Fatalf("CString(6) = %q, %v", s, err)
	}
	if _, err := v.Uint64At(4); err == nil {
		t.Fatal("Uint64At(4) should fail: only 5 bytes remain")
	}
	if _, err := v.Uint32At(-1); err == nil {
		t.Fatal("Uint32At(-1) should fail")
	}
}

func TestByteViewSlice(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	v := NewByteView(b, binary.BigEndian)

	sub, err := v.Slice(1, 2)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got, err := sub.Uint16At(0); err != nil || got != 0x0203 {
		t.Fatalf("Uint16At(0) in sub = %#x, %v", got, err)
	}
	if _, err := v.Slice(4, 2); err == nil {
		t.Fatal("Slice(4, 2) should fail: out of range")
	}
}

type sampleRecord struct {
	A uint32
	B uint64
	C [4]byte
}

func TestStructCodecRoundTrip(t *testing.T) {
	c := Codec[sampleRecord]()
	if c.Size() != 16 {
		t.Fatalf("Size() = %d, want 16", c.Size())
	}

	want := sampleRecord{A: 0xdeadbeef, B: 0x0102030405060708, C: [4]byte{9, 8, 7, 6}}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		encoded := c.Assemble(want, order)
		if len(encoded) != c.Size() {
			t.Fatalf("Assemble produced %d bytes, want %d", len(encoded), c.Size())
		}
		got, err := c.Parse(encoded, order)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestStructCodecParseTruncated(t *testing.T) {
	c := Codec[sampleRecord]()
	if _, err := c.Parse(make([]byte, 4), binary.LittleEndian); err == nil {
		t.Fatal("Parse of truncated input should fail")
	}
}
