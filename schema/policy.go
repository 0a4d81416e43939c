package schema

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// FieldRef names a field of a class.
type FieldRef struct {
	Class string `yaml:"class"`
	Field string `yaml:"field"`
}

// Policy lists per-game exceptions and restrictions that decoders report on
// without failing. Authored content is known to contain references that look
// wrong but are benign; the policy records which ones are expected.
type Policy struct {
	// AllowDuplicates lists reference fields that may point at an instance
	// already referenced from elsewhere in the same container.
	AllowDuplicates []FieldRef `yaml:"allowDuplicates"`

	// DisallowTargets lists classes that reference fields should not point
	// at directly.
	DisallowTargets []string `yaml:"disallowTargets"`

	dup    map[FieldRef]bool
	target map[string]bool
}

// ReadPolicy decodes a YAML policy from r.
func ReadPolicy(r io.Reader) (*Policy, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParsePolicy(b)
}

// LoadPolicy decodes a YAML policy from the file at path.
func LoadPolicy(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePolicy(b)
}

// ParsePolicy decodes a YAML policy held in b.
func ParsePolicy(b []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	p.index()
	return &p, nil
}

func (p *Policy) index() {
	p.dup = make(map[FieldRef]bool, len(p.AllowDuplicates))
	for _, r := range p.AllowDuplicates {
		p.dup[r] = true
	}
	p.target = make(map[string]bool, len(p.DisallowTargets))
	for _, c := range p.DisallowTargets {
		p.target[c] = true
	}
}

// DuplicateAllowed returns whether the field may hold a reference to an
// instance that is referenced elsewhere. A nil policy allows nothing.
func (p *Policy) DuplicateAllowed(class, field string) bool {
	if p == nil {
		return false
	}
	if p.dup == nil {
		p.index()
	}
	return p.dup[FieldRef{Class: class, Field: field}]
}

// TargetDisallowed returns whether class should not be referenced directly.
func (p *Policy) TargetDisallowed(class string) bool {
	if p == nil {
		return false
	}
	if p.target == nil {
		p.index()
	}
	return p.target[class]
}
