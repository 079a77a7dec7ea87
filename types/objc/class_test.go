package objc

import (
	"strings"
	"testing"
)

// TestClassVerboseOrdering mirrors the literal header-emit scenario: a
// class with two methods and two properties renders in declaration
// order by default, and alphabetically (by signature / by name) when
// sorted output is requested.
func TestClassVerboseOrdering(t *testing.T) {
	c := &Class{
		Name:       "Foo",
		SuperClass: "NSObject",
		InstanceMethods: []Method{
			{Name: "zebra", Types: "v16@0:8"},
			{Name: "apple", Types: "@16@0:8"},
		},
		Props: []Property{
			{Name: "zIndex", EncodedAttributes: "Ti,N"},
			{Name: "aName", EncodedAttributes: "T@\"NSString\",R,N"},
		},
	}

	decl := c.Verbose()
	zebraAt := strings.Index(decl, "zebra")
	appleAt := strings.Index(decl, "apple")
	if zebraAt < 0 || appleAt < 0 || zebraAt > appleAt {
		t.Fatalf("Verbose() should preserve declaration order (zebra before apple):\n%s", decl)
	}

	sorted := c.VerboseSorted()
	appleAtSorted := strings.Index(sorted, "apple")
	zebraAtSorted := strings.Index(sorted, "zebra")
	if appleAtSorted < 0 || zebraAtSorted < 0 || appleAtSorted > zebraAtSorted {
		t.Fatalf("VerboseSorted() should order methods by signature (apple's \"@16...\" before zebra's \"v16...\"):\n%s", sorted)
	}

	aNameAt := strings.Index(sorted, "aName")
	zIndexAt := strings.Index(sorted, "zIndex")
	if aNameAt < 0 || zIndexAt < 0 || aNameAt > zIndexAt {
		t.Fatalf("VerboseSorted() should order properties by name (aName before zIndex):\n%s", sorted)
	}
}
