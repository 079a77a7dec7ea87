// Package fatarch parses and writes Mach-O fat (universal) archives: the
// fat_header/fat_arch records that precede a set of per-architecture
// Mach-O slices.
package fatarch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/appsworld/go-macho/types"
)

const (
	magic32      uint32 = 0xcafebabe
	magic64      uint32 = 0xcafebabf
	fatHeaderLen        = 8
	archLen32           = 20
	archLen64           = 32

	// DefaultAlign is the default per-slice alignment (2^14 = 16KiB)
	// FatWriter uses when no per-arch override is supplied.
	DefaultAlign uint32 = 14

	maxArches = 128
)

// FatArch describes one architecture's placement within a fat archive.
// Offsets are absolute within the fat file; integers are always read and
// written big-endian regardless of the slice's own internal byte order.
type FatArch struct {
	CPU      types.CPU
	SubCPU   types.CPUSubtype
	Offset   uint64
	Size     uint64
	Align    uint32
	Is64     bool
	Reserved uint32 // only meaningful for the 64-bit fat_arch variant
}

// Slice pairs a FatArch descriptor with its backing bytes.
type Slice struct {
	FatArch
	Bytes []byte
}

// Error is a sentinel-comparable error kind distinguishing truncated
// input from bytes that simply aren't a fat archive at all.
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func errBadMagic(msg string) error  { return &Error{Kind: "BadMagic", Msg: msg} }
func errTruncated(msg string) error { return &Error{Kind: "Truncated", Msg: msg} }

// IsFat reports whether the first 4 bytes of b are a fat (32- or 64-bit)
// magic number, in either byte order.
func IsFat(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	be := binary.BigEndian.Uint32(b)
	le := binary.LittleEndian.Uint32(b)
	return be == magic32 || be == magic64 || le == magic32 || le == magic64
}

// Read parses a fat archive from r, returning one Slice per architecture
// in on-disk order. Read copies the fat_header/fat_arch table and then
// each slice's body into memory via ReadAt before returning. Only the
// big-endian fat magic is accepted here; any other magic is BadMagic.
func Read(r io.ReaderAt) ([]Slice, error) {
	var hdr [fatHeaderLen]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		if err == io.EOF {
			return nil, errTruncated("input shorter than fat_header")
		}
		return nil, fmt.Errorf("fatarch: %w", err)
	}

	be := binary.BigEndian.Uint32(hdr[0:4])
	is64 := be == magic64
	if !is64 && be != magic32 {
		return nil, errBadMagic("not a fat Mach-O (bad magic)")
	}

	n := binary.BigEndian.Uint32(hdr[4:8])
	if n == 0 {
		return nil, errTruncated("fat archive declares zero architectures")
	}
	if n > maxArches {
		return nil, errTruncated("fat archive declares implausibly many architectures")
	}

	entryLen := archLen32
	if is64 {
		entryLen = archLen64
	}
	tableLen := int(n) * entryLen
	table := make([]byte, tableLen)
	if _, err := r.ReadAt(table, fatHeaderLen); err != nil {
		return nil, errTruncated("fat arch table exceeds input length")
	}

	slices := make([]Slice, n)
	for i := 0; i < int(n); i++ {
		e := table[i*entryLen : (i+1)*entryLen]
		var a FatArch
		a.Is64 = is64
		a.CPU = types.CPU(binary.BigEndian.Uint32(e[0:4]))
		a.SubCPU = types.CPUSubtype(binary.BigEndian.Uint32(e[4:8]))
		if is64 {
			a.Offset = binary.BigEndian.Uint64(e[8:16])
			a.Size = binary.BigEndian.Uint64(e[16:24])
			a.Align = binary.BigEndian.Uint32(e[24:28])
			a.Reserved = binary.BigEndian.Uint32(e[28:32])
		} else {
			a.Offset = uint64(binary.BigEndian.Uint32(e[8:12]))
			a.Size = uint64(binary.BigEndian.Uint32(e[12:16]))
			a.Align = binary.BigEndian.Uint32(e[16:20])
		}

		body := make([]byte, a.Size)
		if a.Size > 0 {
			if _, err := r.ReadAt(body, int64(a.Offset)); err != nil {
				return nil, fmt.Errorf("fatarch: slice %d (%s): %w", i, a.CPU, err)
			}
		}
		slices[i] = Slice{FatArch: a, Bytes: body}
	}

	return slices, nil
}

// WriteOptions controls FatWriter's packing policy.
type WriteOptions struct {
	// Is64 selects the fat_arch_64 record layout. Defaults to false
	// (32-bit fat_arch), matching the vast majority of shipped archives.
	Is64 bool
	// Align overrides DefaultAlign for every slice that doesn't specify
	// its own FatArch.Align (a zero value there means "use this, or the
	// default if this is zero too").
	Align uint32
}

// Write packs slices into a fat archive, placing each at an
// alignment-rounded offset following the one before it, and returns the
// full archive bytes. Slices are written in the order given; their
// Offset/Size fields are recomputed and must not be pre-populated.
func Write(slices []Slice, opts WriteOptions) ([]byte, error) {
	if len(slices) == 0 {
		return nil, errTruncated("cannot pack a fat archive with zero slices")
	}
	if len(slices) > maxArches {
		return nil, errTruncated("too many slices for a single fat archive")
	}

	entryLen := archLen32
	if opts.Is64 {
		entryLen = archLen64
	}
	headerLen := fatHeaderLen + len(slices)*entryLen

	type placed struct {
		Slice
		at uint64
	}
	out := make([]placed, len(slices))
	offset := uint64(headerLen)
	for i, s := range slices {
		align := s.Align
		if align == 0 {
			align = opts.Align
		}
		if align == 0 {
			align = DefaultAlign
		}
		step := uint64(1) << align
		offset = roundUp(offset, step)
		out[i] = placed{Slice: s, at: offset}
		out[i].Align = align
		offset += uint64(len(s.Bytes))
	}

	// Invariant check: arch[i].offset + arch[i].size <= arch[i+1].offset.
	for i := 0; i+1 < len(out); i++ {
		if out[i].at+uint64(len(out[i].Bytes)) > out[i+1].at {
			return nil, fmt.Errorf("fatarch: slice %d overlaps slice %d", i, i+1)
		}
	}

	buf := new(bytes.Buffer)
	buf.Grow(int(offset))

	magic := magic32
	if opts.Is64 {
		magic = magic64
	}
	var hdr [fatHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(slices)))
	buf.Write(hdr[:])

	for _, p := range out {
		e := make([]byte, entryLen)
		binary.BigEndian.PutUint32(e[0:4], uint32(p.CPU))
		binary.BigEndian.PutUint32(e[4:8], uint32(p.SubCPU))
		if opts.Is64 {
			binary.BigEndian.PutUint64(e[8:16], p.at)
			binary.BigEndian.PutUint64(e[16:24], uint64(len(p.Bytes)))
			binary.BigEndian.PutUint32(e[24:28], p.Align)
			binary.BigEndian.PutUint32(e[28:32], p.Reserved)
		} else {
			binary.BigEndian.PutUint32(e[8:12], uint32(p.at))
			binary.BigEndian.PutUint32(e[12:16], uint32(len(p.Bytes)))
			binary.BigEndian.PutUint32(e[16:20], p.Align)
		}
		buf.Write(e)
	}

	for _, p := range out {
		if gap := int64(p.at) - int64(buf.Len()); gap > 0 {
			buf.Write(make([]byte, gap))
		}
		buf.Write(p.Bytes)
	}

	return buf.Bytes(), nil
}

func roundUp(x, align uint64) uint64 {
	return (x + align - 1) &^ (align - 1)
}
