package macho

import (
	"encoding/binary"

	"github.com/appsworld/go-macho/types"
)

// MachOEditor mutates an already-parsed File's load-command list in
// place: inserting or removing commands, renaming a dylib's install
// name, and growing the space reserved for the header when an
// insertion would otherwise overflow it. It generalizes the
// segment-offset remapping export.go already does at export time into
// an explicit, reusable set of operations.
type MachOEditor struct {
	f *File
}

// NewMachOEditor returns an editor for f. f is mutated directly; callers
// that need the original preserved should parse a fresh File first.
func NewMachOEditor(f *File) *MachOEditor {
	return &MachOEditor{f: f}
}

// packLoadCommand assembles a load command's raw bytes: the cmd/cmdsize
// pair, fixedFields verbatim, then trailing (if any) as a NUL-terminated
// string, padded with zero bytes up to align.
func packLoadCommand(bo binary.ByteOrder, cmd types.LoadCmd, fixedFields []byte, trailing string, align uint64) []byte {
	body := append([]byte{}, fixedFields...)
	if trailing != "" {
		body = append(body, []byte(trailing)...)
		body = append(body, 0)
	}
	size := types.RoundUp(uint64(8+len(body)), align)
	raw := make([]byte, size)
	bo.PutUint32(raw[0:4], uint32(cmd))
	bo.PutUint32(raw[4:8], uint32(size))
	copy(raw[8:], body)
	return raw
}

// headerRoom reports the byte offset at which the first segment's
// mapped content begins: the boundary InsertLoadCommand must not cross.
// Files with no segments (rare outside object files) have no such
// boundary and are never rejected.
func (e *MachOEditor) headerRoom() (boundary uint64, ok bool) {
	t := &e.f.FileTOC
	for _, l := range t.Loads {
		if seg, isSeg := l.(*Segment); isSeg && seg.Offset == 0 {
			if seg.Nsect > 0 {
				return uint64(t.Sections[seg.Firstsect].Offset), true
			}
			return seg.Offset + seg.Filesz, true
		}
	}
	return 0, false
}

// spliceAt inserts l at index, failing with NoHeaderPadding if doing so
// would push the end of the load commands past the first segment's data.
func (e *MachOEditor) spliceAt(index int, l Load) error {
	t := &e.f.FileTOC
	if index < 0 || index > len(t.Loads) {
		return &FormatError{Kind: KindUnsupportedEdit, off: 0, msg: "insert index out of range", val: index}
	}

	newSizeCommands := t.SizeCommands + l.LoadSize(t)
	if boundary, ok := e.headerRoom(); ok {
		headerEnd := uint64(t.HdrSize()) + uint64(newSizeCommands)
		if headerEnd > boundary {
			return &FormatError{Kind: KindNoHeaderPadding, off: 0, msg: "insert would overflow the space reserved for load commands", val: headerEnd - boundary}
		}
	}

	loads := make([]Load, 0, len(t.Loads)+1)
	loads = append(loads, t.Loads[:index]...)
	loads = append(loads, l)
	loads = append(loads, t.Loads[index:]...)
	t.Loads = loads
	t.NCommands++
	t.SizeCommands = newSizeCommands
	return nil
}

// InsertLoadCommand splices a new load command of the given kind at
// index. fixedFields is the command's fixed-size payload following the
// cmd/cmdsize pair (e.g., a dylib command's name-offset/timestamp/
// version fields); trailing, if non-empty, is appended as a
// NUL-terminated string. cmdsize is the 8-byte cmd/cmdsize pair plus
// fixedFields plus the trailing string, rounded up to the file's
// load-command alignment.
func (e *MachOEditor) InsertLoadCommand(kind types.LoadCmd, fixedFields []byte, trailing string, index int) error {
	raw := packLoadCommand(e.f.ByteOrder, kind, fixedFields, trailing, e.f.LoadAlign())
	return e.spliceAt(index, LoadCmdBytes{LoadCmd: kind, LoadBytes: raw})
}

// RemoveLoadCommand deletes the load command at index, shifting every
// later command left by one. Because the file is always re-serialized
// from f.Loads (never patched in place), there is no stale tail to
// zero-fill: sizeofcmds simply shrinks to match what remains.
func (e *MachOEditor) RemoveLoadCommand(index int) error {
	t := &e.f.FileTOC
	if index < 0 || index >= len(t.Loads) {
		return &FormatError{Kind: KindUnsupportedEdit, off: 0, msg: "remove index out of range", val: index}
	}
	removed := t.Loads[index]
	t.Loads = append(t.Loads[:index], t.Loads[index+1:]...)
	t.NCommands--
	t.SizeCommands -= removed.LoadSize(t)
	return nil
}

// SetInstallName replaces the file's LC_ID_DYLIB with one carrying
// newName. The replaced command's timestamp and current/compatibility
// versions are read out of its original raw bytes and carried over
// unchanged onto the new one, rather than reset to any fixed template.
func (e *MachOEditor) SetInstallName(newName string) error {
	t := &e.f.FileTOC

	index := -1
	var original *DylibID
	for i, l := range t.Loads {
		if d, isID := l.(*DylibID); isID {
			index, original = i, d
			break
		}
	}
	if original == nil {
		return &FormatError{Kind: KindUnsupportedEdit, off: 0, msg: "file has no LC_ID_DYLIB to rename"}
	}

	raw := original.Raw()
	if len(raw) < 24 {
		return &FormatError{Kind: KindMalformedLoadCommands, off: 0, msg: "LC_ID_DYLIB shorter than dylib_command", val: len(raw)}
	}
	timestamp := t.ByteOrder.Uint32(raw[12:16])
	currentVersion := t.ByteOrder.Uint32(raw[16:20])
	compatVersion := t.ByteOrder.Uint32(raw[20:24])

	fixed := make([]byte, 16)
	t.ByteOrder.PutUint32(fixed[0:4], 24) // name string follows the fixed dylib_command fields
	t.ByteOrder.PutUint32(fixed[4:8], timestamp)
	t.ByteOrder.PutUint32(fixed[8:12], currentVersion)
	t.ByteOrder.PutUint32(fixed[12:16], compatVersion)

	if err := e.RemoveLoadCommand(index); err != nil {
		return err
	}
	newRaw := packLoadCommand(e.f.ByteOrder, types.LC_ID_DYLIB, fixed, newName, e.f.LoadAlign())
	id := &DylibID{
		LoadBytes:      newRaw,
		Name:           newName,
		Time:           timestamp,
		CurrentVersion: types.Version(currentVersion).String(),
		CompatVersion:  types.Version(compatVersion).String(),
	}
	id.DylibCmd.LoadCmd = types.LC_ID_DYLIB
	id.DylibCmd.Len = uint32(len(newRaw))
	return e.spliceAt(index, id)
}

// AddHeaderPadding grows the space reserved for load commands by n
// bytes: every file offset at or past the current end of the load
// commands shifts forward by n, and the first segment's file/VM size
// grows by n to keep covering its (now larger) header region. This is
// the single full-rewrite pass InsertLoadCommand's NoHeaderPadding
// error implies callers fall back to.
func (e *MachOEditor) AddHeaderPadding(n uint64) error {
	if n == 0 {
		return nil
	}
	t := &e.f.FileTOC

	var first *Segment
	for _, l := range t.Loads {
		if seg, isSeg := l.(*Segment); isSeg && seg.Offset == 0 {
			first = seg
			break
		}
	}
	if first == nil {
		return &FormatError{Kind: KindUnsupportedEdit, off: 0, msg: "no segment maps the header; nothing to pad"}
	}

	headerEnd := uint64(t.HdrSize()) + uint64(t.SizeCommands)
	shift := func(off uint64) uint64 {
		if off == 0 || off < headerEnd {
			return off
		}
		return off + n
	}

	first.Filesz += n
	first.Memsz += n

	for _, l := range t.Loads {
		switch l.Command() {
		case types.LC_SEGMENT, types.LC_SEGMENT_64:
			seg := l.(*Segment)
			seg.Offset = shift(seg.Offset)
			for i := uint32(0); i < seg.Nsect; i++ {
				sec := t.Sections[i+seg.Firstsect]
				sec.Offset = uint32(shift(uint64(sec.Offset)))
			}
		case types.LC_SYMTAB:
			st := l.(*Symtab)
			st.Symoff = uint32(shift(uint64(st.Symoff)))
			st.Stroff = uint32(shift(uint64(st.Stroff)))
		case types.LC_DYSYMTAB:
			ds := l.(*Dysymtab)
			ds.Indirectsymoff = uint32(shift(uint64(ds.Indirectsymoff)))
		case types.LC_ENCRYPTION_INFO:
			ei := l.(*EncryptionInfo)
			ei.Offset = uint32(shift(uint64(ei.Offset)))
		case types.LC_ENCRYPTION_INFO_64:
			ei := l.(*EncryptionInfo64)
			ei.Offset = uint32(shift(uint64(ei.Offset)))
		case types.LC_DYLD_INFO:
			di := l.(*DyldInfo)
			di.RebaseOff = uint32(shift(uint64(di.RebaseOff)))
			di.BindOff = uint32(shift(uint64(di.BindOff)))
			di.WeakBindOff = uint32(shift(uint64(di.WeakBindOff)))
			di.LazyBindOff = uint32(shift(uint64(di.LazyBindOff)))
			di.ExportOff = uint32(shift(uint64(di.ExportOff)))
		case types.LC_DYLD_INFO_ONLY:
			di := l.(*DyldInfoOnly)
			di.RebaseOff = uint32(shift(uint64(di.RebaseOff)))
			di.BindOff = uint32(shift(uint64(di.BindOff)))
			di.WeakBindOff = uint32(shift(uint64(di.WeakBindOff)))
			di.LazyBindOff = uint32(shift(uint64(di.LazyBindOff)))
			di.ExportOff = uint32(shift(uint64(di.ExportOff)))
		case types.LC_FUNCTION_STARTS:
			fs := l.(*FunctionStarts)
			fs.Offset = uint32(shift(uint64(fs.Offset)))
		case types.LC_MAIN:
			ep := l.(*EntryPoint)
			ep.EntryOffset = shift(ep.EntryOffset)
		case types.LC_DATA_IN_CODE:
			dic := l.(*DataInCode)
			dic.Offset = uint32(shift(uint64(dic.Offset)))
		case types.LC_DYLIB_CODE_SIGN_DRS:
			dr := l.(*DylibCodeSignDrs)
			dr.Offset = uint32(shift(uint64(dr.Offset)))
		case types.LC_LINKER_OPTIMIZATION_HINT:
			lo := l.(*LinkerOptimizationHint)
			lo.Offset = uint32(shift(uint64(lo.Offset)))
		case types.LC_DYLD_EXPORTS_TRIE:
			et := l.(*DyldExportsTrie)
			et.Offset = uint32(shift(uint64(et.Offset)))
		case types.LC_DYLD_CHAINED_FIXUPS:
			cf := l.(*DyldChainedFixups)
			cf.Offset = uint32(shift(uint64(cf.Offset)))
		case types.LC_FILESET_ENTRY:
			fe := l.(*FilesetEntry)
			fe.Offset = shift(fe.Offset)
		case types.LC_CODE_SIGNATURE:
			cs := l.(*CodeSignature)
			cs.Offset = uint32(shift(uint64(cs.Offset)))
		case types.LC_SEGMENT_SPLIT_INFO:
			// <rdar://problem/23212513> dylibs iOS 9 dyld caches have bogus
			// LC_SEGMENT_SPLIT_INFO; export.go leaves this one alone too.
		}
	}

	return nil
}
