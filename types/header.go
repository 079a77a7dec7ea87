package types

//go:generate stringer -type=HeaderFlag -trimprefix=MH_ -output header_string.go

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/appsworld/go-macho/pkg/codec"
)

// A FileHeader represents a Mach-O file header.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32
}

// fileHeader32 is the on-disk 32-bit mach_header: identical to FileHeader
// but without the trailing reserved field the 64-bit mach_header_64 adds.
type fileHeader32 struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
}

var (
	fileHeader64Codec = codec.Codec[FileHeader]()
	fileHeader32Codec = codec.Codec[fileHeader32]()
)

// Put encodes the header into b, returning the number of bytes written:
// 28 for a 32-bit header, 32 for 64-bit (the mach_header_64's reserved
// trailing field).
func (h *FileHeader) Put(b []byte, o binary.ByteOrder) int {
	if h.Magic == Magic32 {
		enc := fileHeader32Codec.Assemble(fileHeader32{
			Magic: h.Magic, CPU: h.CPU, SubCPU: h.SubCPU, Type: h.Type,
			NCommands: h.NCommands, SizeCommands: h.SizeCommands, Flags: h.Flags,
		}, o)
		copy(b, enc)
		return len(enc)
	}
	enc := fileHeader64Codec.Assemble(*h, o)
	copy(b, enc)
	return len(enc)
}

// Write appends the full 32-byte header encoding (including the 64-bit
// reserved field) to buf.
func (h *FileHeader) Write(buf *bytes.Buffer, o binary.ByteOrder) error {
	buf.Write(fileHeader64Codec.Assemble(*h, o))
	return nil
}

const (
	FileHeaderSize32 = 7 * 4
	FileHeaderSize64 = 8 * 4
)

type Magic uint32

const (
	Magic32  Magic = 0xfeedface
	Magic64  Magic = 0xfeedfacf
	MagicFat Magic = 0xcafebabe
)

var magicStrings = []IntName{
	{uint32(Magic32), "32-bit MachO"},
	{uint32(Magic64), "64-bit MachO"},
	{uint32(MagicFat), "Fat MachO"},
}

func (i Magic) Int() uint32      { return uint32(i) }
func (i Magic) String() string   { return StringName(uint32(i), magicStrings, false) }
func (i Magic) GoString() string { return StringName(uint32(i), magicStrings, true) }

// A HeaderFileType is the Mach-O file type, e.g. an object file, executable, or dynamic library.
type HeaderFileType uint32

const (
	MH_OBJECT      HeaderFileType = 0x1 /* relocatable object file */
	MH_EXECUTE     HeaderFileType = 0x2 /* demand paged executable file */
	MH_FVMLIB      HeaderFileType = 0x3 /* fixed VM shared library file */
	MH_CORE        HeaderFileType = 0x4 /* core file */
	MH_PRELOAD     HeaderFileType = 0x5 /* preloaded executable file */
	MH_DYLIB       HeaderFileType = 0x6 /* dynamically bound shared library */
	MH_DYLINKER    HeaderFileType = 0x7 /* dynamic link editor */
	MH_BUNDLE      HeaderFileType = 0x8 /* dynamically bound bundle file */
	MH_DYLIB_STUB  HeaderFileType = 0x9 /* shared library stub for static linking only, no section contents */
	MH_DSYM        HeaderFileType = 0xa /* companion file with only debug sections */
	MH_KEXT_BUNDLE HeaderFileType = 0xb /* x86_64 kexts */
	MH_FILESET     HeaderFileType = 0xc /* a file composed of other Mach-Os to be run in the same userspace sharing a single linkedit. */
	MH_GPU_EXECUTE HeaderFileType = 0xd /* gpu program */
	MH_GPU_DYLIB   HeaderFileType = 0xe /* gpu support functions */
)

var fileTypeStrings = []IntName{
	{uint32(MH_OBJECT), "OBJECT"},
	{uint32(MH_EXECUTE), "EXECUTE"},
	{uint32(MH_FVMLIB), "FVMLIB"},
	{uint32(MH_CORE), "CORE"},
	{uint32(MH_PRELOAD), "PRELOAD"},
	{uint32(MH_DYLIB), "DYLIB"},
	{uint32(MH_DYLINKER), "DYLINKER"},
	{uint32(MH_BUNDLE), "BUNDLE"},
	{uint32(MH_DYLIB_STUB), "DYLIB_STUB"},
	{uint32(MH_DSYM), "DSYM"},
	{uint32(MH_KEXT_BUNDLE), "KEXT_BUNDLE"},
	{uint32(MH_FILESET), "FILESET"},
	{uint32(MH_GPU_EXECUTE), "GPU_EXECUTE"},
	{uint32(MH_GPU_DYLIB), "GPU_DYLIB"},
}

func (t HeaderFileType) String() string   { return StringName(uint32(t), fileTypeStrings, false) }
func (t HeaderFileType) GoString() string { return StringName(uint32(t), fileTypeStrings, true) }

type HeaderFlag uint32

const (
	None                       HeaderFlag = 0x0
	NoUndefs                   HeaderFlag = 0x1
	IncrLink                   HeaderFlag = 0x2
	DyldLink                   HeaderFlag = 0x4
	BindAtLoad                 HeaderFlag = 0x8
	Prebound                   HeaderFlag = 0x10
	SplitSegs                  HeaderFlag = 0x20
	LazyInit                   HeaderFlag = 0x40
	TwoLevel                   HeaderFlag = 0x80
	ForceFlat                  HeaderFlag = 0x100
	NoMultiDefs                HeaderFlag = 0x200
	NoFixPrebinding            HeaderFlag = 0x400
	Prebindable                HeaderFlag = 0x800
	AllModsBound               HeaderFlag = 0x1000
	SubsectionsViaSymbols      HeaderFlag = 0x2000
	Canonical                  HeaderFlag = 0x4000
	WeakDefines                HeaderFlag = 0x8000
	BindsToWeak                HeaderFlag = 0x10000
	AllowStackExecution        HeaderFlag = 0x20000
	RootSafe                   HeaderFlag = 0x40000
	SetuidSafe                 HeaderFlag = 0x80000
	NoReexportedDylibs         HeaderFlag = 0x100000
	PIE                        HeaderFlag = 0x200000
	DeadStrippableDylib        HeaderFlag = 0x400000
	HasTLVDescriptors          HeaderFlag = 0x800000
	NoHeapExecution            HeaderFlag = 0x1000000
	AppExtensionSafe           HeaderFlag = 0x2000000
	NlistOutofsyncWithDyldinfo HeaderFlag = 0x4000000
	SimSupport                 HeaderFlag = 0x8000000
	DylibInCache               HeaderFlag = 0x80000000
)

// headerFlagNames drives both List()/Flags() and Has(); adding a flag
// here is the only step needed to make it show up in both.
var headerFlagNames = []struct {
	flag HeaderFlag
	name string
}{
	{NoUndefs, "NoUndefs"},
	{IncrLink, "IncrLink"},
	{DyldLink, "DyldLink"},
	{BindAtLoad, "BindAtLoad"},
	{Prebound, "Prebound"},
	{SplitSegs, "SplitSegs"},
	{LazyInit, "LazyInit"},
	{TwoLevel, "TwoLevel"},
	{ForceFlat, "ForceFlat"},
	{NoMultiDefs, "NoMultiDefs"},
	{NoFixPrebinding, "NoFixPrebinding"},
	{Prebindable, "Prebindable"},
	{AllModsBound, "AllModsBound"},
	{SubsectionsViaSymbols, "SubsectionsViaSymbols"},
	{Canonical, "Canonical"},
	{WeakDefines, "WeakDefines"},
	{BindsToWeak, "BindsToWeak"},
	{AllowStackExecution, "AllowStackExecution"},
	{RootSafe, "RootSafe"},
	{SetuidSafe, "SetuidSafe"},
	{NoReexportedDylibs, "NoReexportedDylibs"},
	{PIE, "PIE"},
	{DeadStrippableDylib, "DeadStrippableDylib"},
	{HasTLVDescriptors, "HasTLVDescriptors"},
	{NoHeapExecution, "NoHeapExecution"},
	{AppExtensionSafe, "AppExtensionSafe"},
	{NlistOutofsyncWithDyldinfo, "NlistOutofsyncWithDyldinfo"},
	{SimSupport, "SimSupport"},
	{DylibInCache, "DylibInCache"},
}

// Has reports whether every bit of flag is set.
func (f HeaderFlag) Has(flag HeaderFlag) bool {
	return f&flag == flag
}

// DylibInCache reports the one flag bit read outside this file (the
// dyld shared-cache marker consulted by ObjCReader and MachOEditor).
func (f HeaderFlag) DylibInCache() bool {
	return f.Has(DylibInCache)
}

// List returns the set flag names in declaration order.
func (f HeaderFlag) List() []string {
	if f == None {
		return []string{"None"}
	}
	var flags []string
	for _, hf := range headerFlagNames {
		if f.Has(hf.flag) {
			flags = append(flags, hf.name)
		}
	}
	return flags
}

func (f HeaderFlag) Flags() string {
	return strings.Join(f.List(), ", ")
}

func (h FileHeader) String() string {
	return fmt.Sprintf(
		"Magic         = %s\n"+
			"Type          = %s\n"+
			"CPU           = %s, %s\n"+
			"Commands      = %d (Size: %d)\n"+
			"Flags         = %s\n",
		h.Magic,
		h.Type,
		h.CPU, h.SubCPU.String(h.CPU),
		h.NCommands,
		h.SizeCommands,
		h.Flags.Flags(),
	)
}
