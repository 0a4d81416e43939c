// The declare package is used to generate rszfile graphs in a declarative
// style.
//
// Declarations name classes and fields, which are resolved against a schema
// when the declaration is evaluated. The type of each value is taken from the
// field it is assigned to.
//
// The easiest way to use this package is to import it directly into the
// current package:
//
//	import . "github.com/rsztools/rszfile/declare"
//
// This allows the package's identifiers to be used directly without a
// qualifier.
package declare

import (
	"fmt"

	"github.com/rsztools/rszfile"
	"github.com/rsztools/rszfile/errors"
	"github.com/rsztools/rszfile/schema"
)

var (
	// ErrRef indicates a reference to a name that no instance declares.
	ErrRef = errors.New("undeclared reference")
	// ErrValue indicates a value that cannot be assigned to its field.
	ErrValue = errors.New("value does not match field type")
)

// ValueError indicates a field declaration that could not be evaluated.
type ValueError struct {
	Class string
	Field string
	Cause error
}

func (err ValueError) Error() string {
	return fmt.Sprintf("%s.%s: %s", err.Class, err.Field, err.Cause)
}

func (err ValueError) Unwrap() error {
	return err.Cause
}

// primary is implemented by declarations that can be directly within a
// Container declaration.
type primary interface {
	primary()
}

// Container declares a rszfile.Container. It is a list that contains
// Instance, Version, and Embedded declarations. Each Instance becomes an
// object of the container, in order.
type Container []primary

// Version declares the version of a container.
type Version uint32

func (Version) primary() {}

// Embedded declares that the user data of a container is held by nested
// containers.
type Embedded bool

func (Embedded) primary() {}

// builder holds the state of one evaluation.
type builder struct {
	store *schema.Store
	refs  map[string]*rszfile.Instance
	built []built
	errs  errors.Errors
}

type built struct {
	inst   *rszfile.Instance
	fields []field
}

// build creates the instance of dinst along with every instance declared
// inline within its fields. Values are assigned later by assign, once every
// named instance is known.
func (b *builder) build(dinst instance) *rszfile.Instance {
	class, err := b.store.MustClass(dinst.className)
	if err != nil {
		b.errs = b.errs.Append(err)
		return nil
	}

	var inst *rszfile.Instance
	if dinst.userData != nil {
		ud := rszfile.UserData{
			Hash:     class.Hash,
			Path:     dinst.userData.path,
			PathHash: dinst.userData.pathHash,
		}
		if dinst.userData.embedded != nil {
			c, err := dinst.userData.embedded.Declare(b.store)
			if err != nil {
				b.errs = b.errs.Append(err)
			}
			ud.Embedded = c
		}
		inst = rszfile.NewUserDataInstance(class, ud)
	} else {
		inst = rszfile.NewInstance(class)
	}

	if dinst.reference != "" {
		b.refs[string(dinst.reference)] = inst
	}
	// Inline declarations are replaced by the instances built for them.
	fields := make([]field, len(dinst.fields))
	for i, f := range dinst.fields {
		fields[i] = field{name: f.name, value: make([]interface{}, len(f.value))}
		for j, v := range f.value {
			if d, ok := v.(instance); ok {
				v = b.build(d)
			}
			fields[i].value[j] = v
		}
	}
	b.built = append(b.built, built{inst: inst, fields: fields})
	return inst
}

// assign evaluates the field declarations of each built instance.
func (b *builder) assign() {
	for _, bi := range b.built {
		for _, f := range bi.fields {
			i := bi.inst.Class.FieldIndex(f.name)
			if i < 0 {
				b.errs = b.errs.Append(schema.ConfigError{
					Class: bi.inst.Class.Name,
					Field: f.name,
					Cause: schema.ErrNoField,
				})
				continue
			}
			if bi.inst.IsUserData() {
				continue
			}
			v, err := b.value(bi.inst.Class.Fields[i], f.value)
			if err != nil {
				b.errs = b.errs.Append(ValueError{
					Class: bi.inst.Class.Name,
					Field: f.name,
					Cause: err,
				})
				continue
			}
			bi.inst.Values[i] = v
		}
	}
}

// Declare evaluates the Container declaration against store, generating
// instances and field values, resolving references, and laying out the
// instance list with RebuildInstanceList.
//
// Every problem found is reported; the returned error is an errors.Errors
// when there is more than one.
func (dc Container) Declare(store *schema.Store) (*rszfile.Container, error) {
	c := rszfile.NewContainer()
	b := &builder{store: store, refs: map[string]*rszfile.Instance{}}
	var roots []*rszfile.Instance
	for _, p := range dc {
		switch p := p.(type) {
		case Version:
			c.Version = uint32(p)
		case Embedded:
			c.EmbeddedUserData = bool(p)
		case instance:
			if inst := b.build(p); inst != nil {
				roots = append(roots, inst)
			}
		}
	}
	b.assign()
	if err := b.errs.Return(); err != nil {
		return nil, err
	}
	c.RebuildInstanceList(roots...)
	return c, nil
}

// element is implemented by declarations that can be within an instance
// declaration.
type element interface {
	element()
}

// instance represents the declaration of a rszfile.Instance.
type instance struct {
	className string
	reference Ref
	fields    []field
	userData  *userData
}

func (instance) primary() {}

// Declare evaluates the Instance declaration, generating the instance and
// every instance declared within it. The returned instance is detached.
func (dinst instance) Declare(store *schema.Store) (*rszfile.Instance, error) {
	b := &builder{store: store, refs: map[string]*rszfile.Instance{}}
	inst := b.build(dinst)
	b.assign()
	if err := b.errs.Return(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Instance declares a rszfile.Instance of the named class. Elements are Field
// declarations, which set values of the instance, a Ref declaration, which
// names the instance, and UserData declarations, which make the instance a
// stand-in for data held elsewhere. Fields that are not declared keep their
// zero value.
//
// An Instance declaration may also be given as the value of a reference
// field, in which case it declares an instance referred to by that field.
func Instance(className string, elements ...element) instance {
	inst := instance{className: className}
	for _, e := range elements {
		switch e := e.(type) {
		case Ref:
			inst.reference = e
		case field:
			inst.fields = append(inst.fields, e)
		case userData:
			inst.userData = &e
		}
	}
	return inst
}

type field struct {
	name  string
	value []interface{}
}

func (field) element() {}

// Field declares the value of a field of a rszfile.Instance. The type of the
// value is determined by the schema of the field.
//
// The value argument may be one or more values of any type. A single
// rszfile.Value of the type of the field is used as is. Otherwise, by the
// kind of the field type, values must be the following:
//
//	Bool:
//	    A single bool.
//
//	Int, Uint, Float:
//	    A single number of any type.
//
//	String, RuntimeType:
//	    A single string or []byte.
//
//	Reference:
//	    A single string naming an instance with a Ref declaration, an
//	    Instance declaration, a *rszfile.Instance, or nil.
//
//	GUID:
//	    A single [16]byte, or a string in canonical form.
//
//	Vector, Vector64, IntVector, UintVector:
//	    One number per lane of the type.
//
//	Raw:
//	    A single []byte, no longer than the field.
//
// For array fields, each value is one element of the array, following the
// rules above. An array element of a vector type is given as a []float64,
// []int32, or []uint32.
func Field(name string, value ...interface{}) field {
	return field{name: name, value: value}
}

// Ref declares a string that can be used to refer to the Instance under which
// it was declared.
type Ref string

func (Ref) element() {}

type userData struct {
	path     string
	pathHash uint32
	embedded Container
}

func (userData) element() {}

// UserData declares that the data of the instance is held by the external
// file at path.
func UserData(path string) userData {
	return userData{path: path}
}

// EmbeddedData declares that the data of the instance is held by the nested
// container c, identified by pathHash.
func EmbeddedData(pathHash uint32, c Container) userData {
	if c == nil {
		c = Container{}
	}
	return userData{pathHash: pathHash, embedded: c}
}
