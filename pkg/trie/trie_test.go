package trie

import "testing"

// TestParseTrieSingleExport walks a two-node trie (root -> "_foo") and
// checks the resolved address and name.
func TestParseTrieSingleExport(t *testing.T) {
	data := []byte{
		0x00,                          // root: terminalSize=0
		0x01,                          // root: 1 child
		'_', 'f', 'o', 'o', 0x00,      // edge string "_foo"
		0x08,                          // child node offset = 8
		0x03,                          // node@8: terminalSize=3
		0x00,                          // flags=0 (regular)
		0x80, 0x20,                    // address uleb = 4096
		0x00,                          // node@8: 0 children
	}

	entries, err := ParseTrie(data, 0)
	if err != nil {
		t.Fatalf("ParseTrie: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Name != "_foo" || entries[0].Address != 4096 {
		t.Fatalf("got %+v, want {Name:_foo Address:4096}", entries[0])
	}
}

// TestParseTrieCycle feeds a node whose only child offset points back at
// the root, and expects a CycleError rather than an infinite walk.
func TestParseTrieCycle(t *testing.T) {
	data := []byte{
		0x00,              // root: terminalSize=0
		0x01,              // root: 1 child
		'a', 0x00,         // edge string "a"
		0x00,              // child node offset = 0 (the root itself)
	}

	_, err := ParseTrie(data, 0)
	if err == nil {
		t.Fatal("expected an export trie cycle error")
	}
	cycleErr, ok := err.(*CycleError)
	if !ok {
		t.Fatalf("got %v (%T), want *CycleError", err, err)
	}
	if cycleErr.Offset != 0 {
		t.Errorf("got cycle offset %d, want 0", cycleErr.Offset)
	}
}
