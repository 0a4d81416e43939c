package schema

import (
	"encoding/json"
	"fmt"
	"io"
)

// FieldPatch adjusts one field of a class.
type FieldPatch struct {
	// Name is the name of the field after duplicate names are resolved.
	Name string `json:"name"`
	// Type, if not empty, overrides the effective type of the field.
	Type string `json:"type,omitempty"`
	// Rename, if not empty, becomes the new name of the field.
	Rename string `json:"rename,omitempty"`
}

// PatchTable maps class names to field patches. It is persisted as JSON so
// that types resolved by inference in one run are known up front in the
// next.
type PatchTable struct {
	classes map[string][]FieldPatch
	dirty   bool
}

// NewPatchTable returns an empty table.
func NewPatchTable() *PatchTable {
	return &PatchTable{classes: map[string][]FieldPatch{}}
}

// ReadPatches decodes a patch table from r.
func ReadPatches(r io.Reader) (*PatchTable, error) {
	t := NewPatchTable()
	if err := json.NewDecoder(r).Decode(&t.classes); err != nil {
		return nil, fmt.Errorf("decode patches: %w", err)
	}
	if t.classes == nil {
		t.classes = map[string][]FieldPatch{}
	}
	return t, nil
}

// Record adds p to the patches of class, replacing a patch of the same field.
func (t *PatchTable) Record(class string, p FieldPatch) {
	list := t.classes[class]
	for i, q := range list {
		if q.Name == p.Name {
			if p.Rename == "" {
				p.Rename = q.Rename
			}
			list[i] = p
			t.dirty = true
			return
		}
	}
	t.classes[class] = append(list, p)
	t.dirty = true
}

// Get returns the patches of class.
func (t *PatchTable) Get(class string) []FieldPatch {
	return t.classes[class]
}

// Len returns the number of patched classes.
func (t *PatchTable) Len() int {
	return len(t.classes)
}

// Dirty returns whether patches were recorded since the table was read or
// last written.
func (t *PatchTable) Dirty() bool {
	return t.dirty
}

// Merge records every patch of other into t.
func (t *PatchTable) Merge(other *PatchTable) {
	if other == nil {
		return
	}
	for class, list := range other.classes {
		for _, p := range list {
			t.Record(class, p)
		}
	}
}

// Apply applies the table to the classes of s. A patch names a field by its
// name before the patch is applied; renames take effect for later patches.
func (t *PatchTable) Apply(s *Store) error {
	for name, list := range t.classes {
		c := s.ClassByName(name)
		if c == nil {
			return ConfigError{Class: name, Cause: ErrNoClass}
		}
		for _, p := range list {
			f := c.Field(p.Name)
			if f == nil {
				return ConfigError{Class: name, Field: p.Name, Cause: ErrNoField}
			}
			if p.Type != "" {
				typ := ParseType(p.Type)
				if typ == TypeInvalid {
					return ConfigError{Class: name, Field: p.Name, Cause: fmt.Errorf("%w %q", ErrUnknownType, p.Type)}
				}
				f.Inferred = typ
			}
			if p.Rename != "" && p.Rename != f.Name {
				f.Name = p.Rename
				c.reindex()
			}
		}
	}
	return nil
}

// WriteTo writes the table to w as indented JSON.
func (t *PatchTable) WriteTo(w io.Writer) (n int64, err error) {
	b, err := json.MarshalIndent(t.classes, "", "\t")
	if err != nil {
		return 0, err
	}
	b = append(b, '\n')
	m, err := w.Write(b)
	if err == nil {
		t.dirty = false
	}
	return int64(m), err
}
