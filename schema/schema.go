// Package schema models the class tables that describe the layout of
// instances stored in RSZ containers.
//
// A Store is loaded once per game version from an external JSON dump, and is
// shared read-only by every container decoded with it. The only mutation a
// Store permits is Infer, which records the resolved type of a field whose
// declared type is ambiguous. Infer is not synchronized; callers decoding
// containers concurrently against one Store must serialize it.
package schema

import (
	"fmt"
	"sort"
)

// Field describes one field of a class.
type Field struct {
	// Name is the name of the field, unique within its class.
	Name string

	// Type is the declared type of the field.
	Type Type

	// Array indicates that the field holds a counted sequence of values.
	Array bool

	// Size is the number of bytes occupied by one value.
	Size int

	// Align is the alignment of one value.
	Align int

	// Native marks fields whose bytes are copied raw by the engine.
	Native bool

	// OriginalType is the engine type name of the field, which resolves the
	// class of object and array elements.
	OriginalType string

	// Inferred overrides Type once the true type of an ambiguous field is
	// known. TypeInvalid means no override.
	Inferred Type
}

// Effective returns the type used to decode and encode the field.
func (f *Field) Effective() Type {
	if f.Inferred != TypeInvalid {
		return f.Inferred
	}
	return f.Type
}

// Ambiguous returns whether the field is an opaque 4-byte native field whose
// meaning has not been resolved.
func (f *Field) Ambiguous() bool {
	return f.Inferred == TypeInvalid && f.Type == TypeData && f.Size == 4 && f.Native
}

// IsReference returns whether the field refers to other instances.
func (f *Field) IsReference() bool {
	return f.Effective().IsReference()
}

// Class describes the ordered fields of one engine class.
type Class struct {
	Name   string
	Hash   uint32
	CRC    uint32
	Fields []*Field

	index map[string]int
}

// NullClass is the class of the sentinel instance at index 0 of every
// container.
var NullClass = &Class{Name: "", index: map[string]int{}}

// NewClass returns a class with the given fields. Duplicate field names are
// renamed as described by DedupeFields.
func NewClass(name string, hash, crc uint32, fields ...*Field) *Class {
	c := &Class{Name: name, Hash: hash, CRC: crc, Fields: fields}
	DedupeFields(c.Fields)
	c.reindex()
	return c
}

func (c *Class) reindex() {
	c.index = make(map[string]int, len(c.Fields))
	for i, f := range c.Fields {
		c.index[f.Name] = i
	}
}

// FieldIndex returns the position of the named field, or -1.
func (c *Class) FieldIndex(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Field returns the named field, or nil.
func (c *Class) Field(name string) *Field {
	if i := c.FieldIndex(name); i >= 0 {
		return c.Fields[i]
	}
	return nil
}

// IsNull returns whether c is the class of the null instance.
func (c *Class) IsNull() bool {
	return c == nil || c.Hash == 0
}

func (c *Class) String() string {
	if c.IsNull() {
		return "NULL"
	}
	return c.Name
}

// DedupeFields renames fields that share a name with an earlier field. The
// first occurrence keeps the name; later ones receive the smallest numeric
// suffix, starting at 1, that is not already taken.
func DedupeFields(fields []*Field) {
	taken := make(map[string]bool, len(fields))
	for _, f := range fields {
		taken[f.Name] = false
	}
	for _, f := range fields {
		if !taken[f.Name] {
			taken[f.Name] = true
			continue
		}
		base := f.Name
		for i := 1; ; i++ {
			name := fmt.Sprintf("%s%d", base, i)
			if _, ok := taken[name]; !ok {
				f.Name = name
				taken[name] = true
				break
			}
		}
	}
}

// Store is a class table for one game version.
type Store struct {
	byHash map[uint32]*Class
	byName map[string]*Class

	// Patches collects field type resolutions made by Infer.
	Patches *PatchTable
}

// NewStore returns a store containing classes.
func NewStore(classes ...*Class) *Store {
	s := &Store{
		byHash:  make(map[uint32]*Class, len(classes)),
		byName:  make(map[string]*Class, len(classes)),
		Patches: NewPatchTable(),
	}
	for _, c := range classes {
		s.Add(c)
	}
	return s
}

// Add adds or replaces a class.
func (s *Store) Add(c *Class) {
	if c.index == nil {
		c.reindex()
	}
	s.byHash[c.Hash] = c
	s.byName[c.Name] = c
}

// Class returns the class with the given hash. Hash 0 returns NullClass.
func (s *Store) Class(hash uint32) *Class {
	if hash == 0 {
		return NullClass
	}
	return s.byHash[hash]
}

// ClassByName returns the named class, or nil.
func (s *Store) ClassByName(name string) *Class {
	return s.byName[name]
}

// MustClass returns the named class, or a ConfigError naming it.
func (s *Store) MustClass(name string) (*Class, error) {
	if c := s.byName[name]; c != nil {
		return c, nil
	}
	return nil, ConfigError{Class: name, Cause: ErrNoClass}
}

// MustField returns the named field of the named class, or a ConfigError.
func (s *Store) MustField(class, field string) (*Class, int, error) {
	c, err := s.MustClass(class)
	if err != nil {
		return nil, -1, err
	}
	i := c.FieldIndex(field)
	if i < 0 {
		return c, -1, ConfigError{Class: class, Field: field, Cause: ErrNoField}
	}
	return c, i, nil
}

// Len returns the number of classes in the store.
func (s *Store) Len() int {
	return len(s.byHash)
}

// Classes returns the classes of the store ordered by name.
func (s *Store) Classes() []*Class {
	list := make([]*Class, 0, len(s.byHash))
	for _, c := range s.byHash {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Infer sets the resolved type of a field and records it in the store's
// patch table.
func (s *Store) Infer(c *Class, field int, t Type) {
	f := c.Fields[field]
	f.Inferred = t
	if s.Patches == nil {
		s.Patches = NewPatchTable()
	}
	s.Patches.Record(c.Name, FieldPatch{Name: f.Name, Type: t.String()})
}
