package fatarch

import (
	"bytes"
	"testing"

	"github.com/appsworld/go-macho/types"
	"github.com/google/go-cmp/cmp"
)

func TestWriteReadRoundTrip(t *testing.T) {
	slices := []Slice{
		{FatArch: FatArch{CPU: types.CPUArm64, SubCPU: 0}, Bytes: bytes.Repeat([]byte{0xAA}, 100)},
		{FatArch: FatArch{CPU: types.CPUAmd64, SubCPU: 3}, Bytes: bytes.Repeat([]byte{0xBB}, 250)},
	}

	out, err := Write(slices, WriteOptions{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !IsFat(out) {
		t.Fatalf("packed archive did not sniff as fat")
	}

	got, err := Read(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(slices) {
		t.Fatalf("got %d slices, want %d", len(got), len(slices))
	}
	for i := range slices {
		if !bytes.Equal(got[i].Bytes, slices[i].Bytes) {
			t.Errorf("slice %d: body mismatch", i)
		}
		if got[i].CPU != slices[i].CPU {
			t.Errorf("slice %d: cpu = %v, want %v", i, got[i].CPU, slices[i].CPU)
		}
		if got[i].Offset%(1<<DefaultAlign) != 0 {
			t.Errorf("slice %d: offset %#x not aligned to 2^%d", i, got[i].Offset, DefaultAlign)
		}
	}
	// arch[i].offset + arch[i].size <= arch[i+1].offset
	for i := 0; i+1 < len(got); i++ {
		if got[i].Offset+got[i].Size > got[i+1].Offset {
			t.Errorf("slice %d overruns slice %d", i, i+1)
		}
	}
}

func TestReadRejectsZeroArches(t *testing.T) {
	hdr := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x00}
	if _, err := Read(bytes.NewReader(hdr)); err == nil {
		t.Fatal("expected error for zero-arch fat header")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	hdr := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0x00, 0x01}
	_, err := Read(bytes.NewReader(hdr))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
	fe, ok := err.(*Error)
	if !ok || fe.Kind != "BadMagic" {
		t.Fatalf("got %v, want BadMagic", err)
	}
}

func TestReadTruncatedTable(t *testing.T) {
	hdr := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x02}
	if _, err := Read(bytes.NewReader(hdr)); err == nil {
		t.Fatal("expected truncated error when arch table exceeds input")
	}
}

func TestFatArch64RoundTrip(t *testing.T) {
	slices := []Slice{
		{FatArch: FatArch{CPU: types.CPUArm64, SubCPU: 2, Reserved: 0}, Bytes: bytes.Repeat([]byte{0x11}, 40)},
	}
	out, err := Write(slices, WriteOptions{Is64: true})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(slices[0].Bytes, got[0].Bytes); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if !got[0].Is64 {
		t.Errorf("expected Is64 = true on round-tripped slice")
	}
}
