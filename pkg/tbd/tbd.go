// Package tbd renders TAPI text-based stub ("TBD") YAML describing a
// dylib's ABI: its install name, versions, and exported symbols —
// without any executable code.
package tbd

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// ExportSet is one architecture-scoped group of exported names, matching
// the TBD format's per-arch export-list shape.
type ExportSet struct {
	Archs       []string `yaml:"archs"`
	Symbols     []string `yaml:"symbols,omitempty"`
	ObjcClasses []string `yaml:"objc-classes,omitempty"`
	ObjcIvars   []string `yaml:"objc-ivars,omitempty"`
	ReExports   []string `yaml:"re-exports,omitempty"`
}

// Stub is the top-level TBD document.
type Stub struct {
	Archs                []string    `yaml:"archs"`
	Platform             string      `yaml:"platform"`
	InstallName          string      `yaml:"install-name"`
	CurrentVersion       string      `yaml:"current-version"`
	CompatibilityVersion string      `yaml:"compatibility-version"`
	Exports              []ExportSet `yaml:"exports"`
}

// Sort canonicalizes the stub: every list (architectures at the top
// level, and each export set's symbols/classes/ivars/re-exports) is
// sorted so that two stubs built from the same dylib always serialize
// identically regardless of the order their source data was walked in.
func (s *Stub) Sort() {
	sort.Strings(s.Archs)
	for i := range s.Exports {
		e := &s.Exports[i]
		sort.Strings(e.Archs)
		sort.Strings(e.Symbols)
		sort.Strings(e.ObjcClasses)
		sort.Strings(e.ObjcIvars)
		sort.Strings(e.ReExports)
	}
}

// Render canonicalizes s and marshals it to TBD YAML.
func Render(s Stub) ([]byte, error) {
	s.Sort()
	return yaml.Marshal(s)
}
