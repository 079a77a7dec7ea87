package tbd

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRenderIsCanonicalAndStable(t *testing.T) {
	s := Stub{
		Archs:                []string{"x86_64", "arm64"},
		Platform:             "macos",
		InstallName:          "/usr/lib/libfoo.dylib",
		CurrentVersion:       "1.2.3",
		CompatibilityVersion: "1.0.0",
		Exports: []ExportSet{
			{Archs: []string{"x86_64", "arm64"}, Symbols: []string{"_zzz", "_aaa"}},
		},
	}

	out1, err := Render(s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out2, err := Render(s)
	if err != nil {
		t.Fatalf("Render (again): %v", err)
	}
	if string(out1) != string(out2) {
		t.Fatalf("Render is not stable across calls:\n%s\n---\n%s", out1, out2)
	}

	var roundTripped Stub
	if err := yaml.Unmarshal(out1, &roundTripped); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if roundTripped.Archs[0] != "arm64" || roundTripped.Archs[1] != "x86_64" {
		t.Fatalf("archs not sorted: %v", roundTripped.Archs)
	}
	if roundTripped.Exports[0].Symbols[0] != "_aaa" {
		t.Fatalf("symbols not sorted: %v", roundTripped.Exports[0].Symbols)
	}
	if !strings.Contains(string(out1), "install-name:") {
		t.Fatalf("missing install-name field in output:\n%s", out1)
	}
}
