package bind

import "testing"

// TestDecodeScenario mirrors the literal end-to-end binding decode
// example: SET_DYLIB_ORDINAL_IMM 2; SET_SYMBOL_TRAILING_FLAGS_IMM 0,
// "_foo"; SET_SEGMENT_AND_OFFSET_ULEB seg=2, off=16; DO_BIND; DONE.
func TestDecodeScenario(t *testing.T) {
	stream := []byte{
		0x12,                   // SET_DYLIB_ORDINAL_IMM 2
		0x40, '_', 'f', 'o', 'o', 0x00, // SET_SYMBOL_TRAILING_FLAGS_IMM 0, "_foo"
		0x72, 0x10, // SET_SEGMENT_AND_OFFSET_ULEB seg=2, off=16
		0x90, // DO_BIND
		0x00, // DONE
	}

	actions, err := Decode(stream, 8, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	a := actions[0]
	if a.SegmentIndex != 2 || a.Offset != 16 || a.SymbolName != "_foo" || a.DylibOrdinal != 2 {
		t.Fatalf("got %+v, want {seg=2 off=16 sym=_foo ord=2}", a)
	}
}

func TestDecodeUnknownOpcodePreservesPartial(t *testing.T) {
	stream := []byte{
		0x12,       // SET_DYLIB_ORDINAL_IMM 2
		0x90,       // DO_BIND (segment/offset default to zero value)
		0xD1, 0xFF, // THREADED (accepted, emits nothing), then 0xFF: a high nibble this VM doesn't define
	}
	actions, err := Decode(stream, 8, false)
	if err == nil {
		t.Fatal("expected an UnknownOpcode error")
	}
	if len(actions) != 1 {
		t.Fatalf("expected the DO_BIND before the bad opcode to survive, got %d actions", len(actions))
	}
}

func TestDecodeAddendAndSpecialOrdinal(t *testing.T) {
	stream := []byte{
		0x3F,       // SET_DYLIB_SPECIAL_IMM -1 (main executable)
		0x60, 0x7F, // SET_ADDEND_SLEB -1
		0x90, // DO_BIND
		0x00, // DONE
	}
	actions, err := Decode(stream, 8, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if actions[0].DylibOrdinal != -1 {
		t.Errorf("got ordinal %d, want -1", actions[0].DylibOrdinal)
	}
	if actions[0].Addend != -1 {
		t.Errorf("got addend %d, want -1", actions[0].Addend)
	}
}

func TestDecodeLazyResetsPerEntry(t *testing.T) {
	entry := []byte{
		0x72, 0x08, // SET_SEGMENT_AND_OFFSET_ULEB seg=2, off=8
		0x40, 'x', 0x00, // SET_SYMBOL_TRAILING_FLAGS_IMM 0, "x"
		0x90, // DO_BIND
		0x00, // DONE
	}
	stream := append(append([]byte{}, entry...), entry...)
	actions, err := DecodeLazy(stream)
	if err != nil {
		t.Fatalf("DecodeLazy: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	for _, a := range actions {
		if a.SymbolName != "x" || a.Offset != 8 {
			t.Errorf("got %+v, want each entry independently resolved to x@8", a)
		}
	}
}

func TestReadUleb128Multibyte(t *testing.T) {
	// 0xE5 0x8E 0x26 decodes to 624485 per the DWARF LEB128 example.
	v, n, err := readUleb128([]byte{0xE5, 0x8E, 0x26})
	if err != nil {
		t.Fatalf("readUleb128: %v", err)
	}
	if v != 624485 || n != 3 {
		t.Fatalf("got (%d, %d), want (624485, 3)", v, n)
	}
}

func TestReadSleb128Negative(t *testing.T) {
	// 0x9B 0xF1 0x59 decodes to -624485.
	v, n, err := readSleb128([]byte{0x9B, 0xF1, 0x59})
	if err != nil {
		t.Fatalf("readSleb128: %v", err)
	}
	if v != -624485 || n != 3 {
		t.Fatalf("got (%d, %d), want (-624485, 3)", v, n)
	}
}
