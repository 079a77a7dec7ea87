// Package bind interprets the dyld bind/weak-bind/lazy-bind opcode
// streams (LC_DYLD_INFO[_ONLY]) into a flat list of BindingActions. This
// is the classic bytecode VM dyld itself runs at load time; it is
// distinct from (and does not consult) the newer chained-fixups format.
package bind

import (
	"fmt"

	"github.com/appsworld/go-macho/types"
)

// Action is one resolved bind/weak-bind/lazy-bind target.
type Action struct {
	SegmentIndex int
	Offset       uint64
	SymbolName   string
	DylibOrdinal int
	Addend       int64
	Type         uint8
	Flags        uint8
	Weak         bool
}

// Error reports a malformed opcode stream. Kind is "Truncated" when the
// stream ends mid-opcode, or "UnknownOpcode" when a byte's high nibble
// does not match any defined opcode.
type Error struct {
	Kind   string
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at opcode stream offset %#x: %s", e.Kind, e.Offset, e.Msg)
}

// vm is the bind decoder's mutable state, threaded through a single
// record-and-emit loop rather than mutual recursion, per the opcode
// stream's own "set state, then emit" structure.
type vm struct {
	segmentIndex int
	offset       uint64
	symbolName   string
	symbolFlags  uint8
	bindType     uint8
	dylibOrdinal int
	addend       int64

	ptrSize uint64
	weak    bool

	actions []Action
}

// Decode interprets a classic bind or weak-bind opcode stream. ptrSize
// must be 8 for 64-bit images, 4 for 32-bit. weak marks the stream as a
// weak-bind stream (affects only the Weak field on emitted Actions;
// weak-bind opcodes are otherwise identical to regular bind opcodes).
//
// Unknown opcodes are non-fatal per spec: the byte is recorded in the
// returned error's Msg and decoding stops, but actions already emitted
// are returned alongside the error so callers can keep partial results.
func Decode(data []byte, ptrSize uint64, weak bool) ([]Action, error) {
	v := &vm{ptrSize: ptrSize, weak: weak, dylibOrdinal: 0}
	err := v.run(data)
	return v.actions, err
}

// DecodeLazy interprets a lazy-bind stream. As with bind/weak-bind,
// DONE does not terminate the whole stream; unlike them, each lazy entry
// is independent and is decoded with fresh state (segment, offset,
// ordinal, symbol, addend) up to its own DONE boundary, since dyld
// invokes lazy stubs one at a time, each beginning its own resolution
// from scratch. Pointer size is always taken as 8.
func DecodeLazy(data []byte) ([]Action, error) {
	var all []Action
	i := 0
	for i < len(data) {
		// Each lazy entry is parsed independently up to its own DONE;
		// a raw byte scan for 0x00 would mis-split a stream whose
		// payload (a ULEB128 or a symbol name) happens to contain that
		// byte, so the boundary is found by the opcode parser itself.
		v := &vm{ptrSize: 8, dylibOrdinal: 0}
		n, err := v.runOne(data[i:])
		all = append(all, v.actions...)
		if err != nil {
			return all, err
		}
		if n <= 0 {
			break
		}
		i += n
	}
	return all, nil
}

func (v *vm) run(data []byte) error {
	_, err := v.runUntil(data, false)
	return err
}

// runOne decodes a single lazy-bind entry: opcodes up to and including
// its terminating DONE, returning the number of bytes consumed.
func (v *vm) runOne(data []byte) (int, error) {
	return v.runUntil(data, true)
}

func (v *vm) runUntil(data []byte, stopAtFirstDone bool) (int, error) {
	i := 0
	for i < len(data) {
		op := data[i]
		opcode := op & types.BIND_OPCODE_MASK
		imm := int(op & 0x0F)
		i++

		switch uint32(opcode) {
		case types.BIND_OPCODE_DONE:
			v.symbolName = ""
			v.addend = 0
			v.symbolFlags = 0
			if stopAtFirstDone {
				return i, nil
			}

		case types.BIND_OPCODE_SET_DYLIB_ORDINAL_IMM:
			v.dylibOrdinal = imm

		case types.BIND_OPCODE_SET_DYLIB_ORDINAL_ULEB:
			n, adv, err := readUleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			v.dylibOrdinal = int(n)
			i += adv

		case types.BIND_OPCODE_SET_DYLIB_SPECIAL_IMM:
			// sign-extend the 4-bit immediate (self/main/flat/weak markers)
			if imm == 0 {
				v.dylibOrdinal = 0
			} else {
				v.dylibOrdinal = int(int8(imm | 0xF0))
			}

		case types.BIND_OPCODE_SET_SYMBOL_TRAILING_FLAGS_IMM:
			v.symbolFlags = uint8(imm)
			start := i
			for i < len(data) && data[i] != 0 {
				i++
			}
			if i >= len(data) {
				return i, &Error{Kind: "Truncated", Offset: start, Msg: "unterminated symbol name"}
			}
			v.symbolName = string(data[start:i])
			i++ // skip NUL

		case types.BIND_OPCODE_SET_TYPE_IMM:
			v.bindType = uint8(imm)

		case types.BIND_OPCODE_SET_ADDEND_SLEB:
			n, adv, err := readSleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			v.addend = n
			i += adv

		case types.BIND_OPCODE_SET_SEGMENT_AND_OFFSET_ULEB:
			v.segmentIndex = imm
			n, adv, err := readUleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			v.offset = n
			i += adv

		case types.BIND_OPCODE_ADD_ADDR_ULEB:
			n, adv, err := readUleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			v.offset += n
			i += adv

		case types.BIND_OPCODE_DO_BIND:
			v.emit()
			v.offset += v.ptrSize

		case types.BIND_OPCODE_DO_BIND_ADD_ADDR_ULEB:
			v.emit()
			n, adv, err := readUleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			v.offset += v.ptrSize + n
			i += adv

		case types.BIND_OPCODE_DO_BIND_ADD_ADDR_IMM_SCALED:
			v.emit()
			v.offset += v.ptrSize * uint64(1+imm)

		case types.BIND_OPCODE_DO_BIND_ULEB_TIMES_SKIPPING_ULEB:
			count, adv, err := readUleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			i += adv
			skip, adv2, err := readUleb128(data[i:])
			if err != nil {
				return i, &Error{Kind: "Truncated", Offset: i, Msg: err.Error()}
			}
			i += adv2
			for n := uint64(0); n < count; n++ {
				v.emit()
				v.offset += v.ptrSize + skip
			}

		case types.BIND_OPCODE_THREADED:
			// Threaded rebasing (arm64e) subcommands carry no symbol
			// binding of their own kind this decoder models; nothing to
			// emit. Accept and continue so the rest of the stream (if
			// any) still decodes.

		default:
			return i, &Error{Kind: "UnknownOpcode", Offset: i - 1, Msg: fmt.Sprintf("opcode %#x", op)}
		}
	}
	return i, nil
}

func (v *vm) emit() {
	v.actions = append(v.actions, Action{
		SegmentIndex: v.segmentIndex,
		Offset:       v.offset,
		SymbolName:   v.symbolName,
		DylibOrdinal: v.dylibOrdinal,
		Addend:       v.addend,
		Type:         v.bindType,
		Flags:        v.symbolFlags,
		Weak:         v.weak,
	})
}

func readUleb128(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, c := range b {
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("ULEB128 overflow")
		}
	}
	return 0, 0, fmt.Errorf("unterminated ULEB128")
}

func readSleb128(b []byte) (int64, int, error) {
	var result int64
	var shift uint
	var c byte
	i := 0
	for {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("unterminated SLEB128")
		}
		c = b[i]
		result |= int64(c&0x7f) << shift
		shift += 7
		i++
		if c&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, 0, fmt.Errorf("SLEB128 overflow")
		}
	}
	if shift < 64 && (c&0x40) != 0 {
		result |= -(int64(1) << shift)
	}
	return result, i, nil
}
