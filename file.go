// The rszfile package handles the manipulation of RSZ instance graphs.
//
// An RSZ container holds a flat list of instances. Each instance has a class
// described by a schema, and one value per field of that class. Fields of a
// reference type link to other instances of the same container, forming a
// graph. A subset of the instances, the objects, are exposed to the file that
// embeds the container through the object table.
//
// Containers are decoded from and encoded to bytes by the "rsz" sub-package.
// Containers can also be created manually, either through NewInstance and
// the graph operations of Container, or through the "declare" sub-package.
//
// After structural changes to a graph, such as adding, removing, duplicating
// or importing objects, the instance list and tables of a container are
// regenerated as a whole with RebuildInstanceList.
package rszfile

import (
	"fmt"

	"github.com/rsztools/rszfile/schema"
)

////////////////////////////////////////////////////////////////

// Instance represents a single object of a known class.
type Instance struct {
	// Class describes the fields of the instance.
	Class *schema.Class

	// Index is the position of the instance in the instance list of its
	// container, or -1 if the instance is not part of a container.
	Index int

	// Values contains one value per field of Class. Empty if the instance
	// is linked to user data.
	Values []Value

	// UserData is set when the data of the instance lives in an external
	// file or an embedded container.
	UserData *UserData
}

// Null is the sentinel instance at index 0 of every container. It is never
// cloned or mutated.
var Null = &Instance{Class: schema.NullClass, Index: 0}

// NewInstance returns a detached instance of class with the zero value of
// each field.
func NewInstance(class *schema.Class) *Instance {
	inst := &Instance{
		Class:  class,
		Index:  -1,
		Values: make([]Value, len(class.Fields)),
	}
	for i, f := range class.Fields {
		inst.Values[i] = NewFieldValue(f)
	}
	return inst
}

// NewUserDataInstance returns a detached stand-in for data of class stored
// outside of the container. The returned instance has no values.
func NewUserDataInstance(class *schema.Class, ud UserData) *Instance {
	inst := &Instance{Class: class, Index: -1}
	ud.Instance = inst
	inst.UserData = &ud
	return inst
}

// IsNull returns whether the instance is the null sentinel.
func (inst *Instance) IsNull() bool {
	return inst == nil || inst == Null || inst.Class.IsNull()
}

// IsUserData returns whether the instance is a stand-in for user data.
func (inst *Instance) IsUserData() bool {
	return inst != nil && inst.UserData != nil
}

// Get returns the value of the named field, or nil if the field does not
// exist.
func (inst *Instance) Get(field string) Value {
	i := inst.Class.FieldIndex(field)
	if i < 0 || i >= len(inst.Values) {
		return nil
	}
	return inst.Values[i]
}

// Set sets the value of the named field. Returns a schema.ConfigError if the
// class has no such field.
func (inst *Instance) Set(field string, value Value) error {
	i := inst.Class.FieldIndex(field)
	if i < 0 || i >= len(inst.Values) {
		return schema.ConfigError{Class: inst.Class.Name, Field: field, Cause: schema.ErrNoField}
	}
	inst.Values[i] = value
	return nil
}

// String returns the class name and index of the instance.
func (inst *Instance) String() string {
	if inst.IsNull() {
		return "NULL"
	}
	return fmt.Sprintf("%s[%d]", inst.Class.Name, inst.Index)
}

// EachReference calls fn for each non-null reference held by the instance,
// in field order, and for array fields in element order. field is the index
// of the field, and elem is the element index, or -1 for non-array fields.
// Iteration stops when fn returns false.
func (inst *Instance) EachReference(fn func(field, elem int, ref *Instance) bool) {
	for i, v := range inst.Values {
		switch v := v.(type) {
		case ValueReference:
			if v.Instance != nil && !v.Instance.IsNull() {
				if !fn(i, -1, v.Instance) {
					return
				}
			}
		case ValueArray:
			for j, e := range v.Values {
				if r, ok := e.(ValueReference); ok && r.Instance != nil && !r.Instance.IsNull() {
					if !fn(i, j, r.Instance) {
						return
					}
				}
			}
		}
	}
}

// SetReference replaces the referent of a reference value. elem is -1 for
// non-array fields.
func (inst *Instance) SetReference(field, elem int, ref *Instance) {
	if elem < 0 {
		v := inst.Values[field].(ValueReference)
		v.Instance = ref
		inst.Values[field] = v
		return
	}
	arr := inst.Values[field].(ValueArray)
	v := arr.Values[elem].(ValueReference)
	v.Instance = ref
	arr.Values[elem] = v
}

////////////////////////////////////////////////////////////////

// UserData describes an instance whose data is held outside of the
// container, either in an external file named by Path, or in an embedded
// container.
type UserData struct {
	// Instance is the stand-in instance in the instance list.
	Instance *Instance

	// Hash is the class hash of the linked data.
	Hash uint32

	// Path is the path of the external file.
	Path string

	// PathHash identifies the source of embedded data.
	PathHash uint32

	// Embedded holds the data when it is embedded.
	Embedded *Container
}

// IsEmbedded returns whether the data is held by an embedded container.
func (ud *UserData) IsEmbedded() bool {
	return ud.Embedded != nil
}

////////////////////////////////////////////////////////////////

// Container is a decoded RSZ container.
type Container struct {
	// Version is the format version written to the header.
	Version uint32

	// EmbeddedUserData selects the layout of the user data table. When
	// true, user data is held by nested containers rather than referenced
	// by path.
	EmbeddedUserData bool

	// Instances is the flat list of instances. Index 0 is Null.
	Instances []*Instance

	// ObjectTable contains the indices of the objects exposed to the file
	// embedding the container.
	ObjectTable []int

	// UserData lists the instances linked to user data, in index order.
	UserData []*UserData
}

// DefaultVersion is the container version used by NewContainer.
const DefaultVersion = 16

// NewContainer returns an empty container holding only Null.
func NewContainer() *Container {
	return &Container{
		Version:   DefaultVersion,
		Instances: []*Instance{Null},
	}
}

// Objects returns the instances referred to by the object table, in table
// order. Indices outside of the instance list are skipped.
func (c *Container) Objects() []*Instance {
	objs := make([]*Instance, 0, len(c.ObjectTable))
	for _, i := range c.ObjectTable {
		if i > 0 && i < len(c.Instances) {
			objs = append(objs, c.Instances[i])
		}
	}
	return objs
}

// Instance returns the instance at index i, or nil.
func (c *Container) Instance(i int) *Instance {
	if i < 0 || i >= len(c.Instances) {
		return nil
	}
	return c.Instances[i]
}
