package rszfile

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/rsztools/rszfile/schema"
)

// Value holds the value of one field, or one element of an array field.
type Value interface {
	// Type returns the type the value is encoded as.
	Type() schema.Type

	// String returns a string representation of the current value.
	String() string

	// Copy returns a copy of the value, which can be safely modified.
	// References are copied as references; the referent is not copied.
	Copy() Value
}

// NewValue returns the zero value for a field of type t with the given size.
// Returns nil if t is not valid.
func NewValue(t schema.Type, size int) Value {
	switch t.Kind() {
	case schema.KindBool:
		return ValueBool(false)
	case schema.KindInt:
		return ValueInt{Tag: t}
	case schema.KindUint:
		return ValueUint{Tag: t}
	case schema.KindFloat:
		return ValueFloat{Tag: t}
	case schema.KindString:
		return ValueString{Tag: t}
	case schema.KindRuntimeType:
		return ValueRuntimeType("")
	case schema.KindReference:
		return ValueReference{Tag: t}
	case schema.KindGUID:
		return ValueGUID{Tag: t}
	case schema.KindVector:
		return ValueVector{Tag: t, Value: make([]float32, t.Lanes())}
	case schema.KindVector64:
		return ValueVector64{Tag: t, Value: make([]float64, t.Lanes())}
	case schema.KindIntVector:
		return ValueIntVector{Tag: t, Value: make([]int32, t.Lanes())}
	case schema.KindUintVector:
		return ValueUintVector{Tag: t, Value: make([]uint32, t.Lanes())}
	case schema.KindRaw:
		return ValueRaw{Tag: t, Value: make([]byte, t.Payload(size))}
	}
	return nil
}

// NewFieldValue returns the zero value of a field. Array fields receive an
// empty array.
func NewFieldValue(f *schema.Field) Value {
	if f.Array {
		return ValueArray{Tag: f.Effective()}
	}
	return NewValue(f.Effective(), f.Size)
}

////////////////////////////////////////////////////////////////

type ValueBool bool

func (ValueBool) Type() schema.Type { return schema.TypeBool }
func (t ValueBool) String() string {
	if t {
		return "true"
	}
	return "false"
}
func (t ValueBool) Copy() Value { return t }

////////////////////////////////////////////////////////////////

// ValueInt holds a signed integer of any width.
type ValueInt struct {
	Tag   schema.Type
	Value int64
}

func (t ValueInt) Type() schema.Type { return t.Tag }
func (t ValueInt) String() string    { return strconv.FormatInt(t.Value, 10) }
func (t ValueInt) Copy() Value       { return t }

////////////////////////////////////////////////////////////////

// ValueUint holds an unsigned integer of any width.
type ValueUint struct {
	Tag   schema.Type
	Value uint64
}

func (t ValueUint) Type() schema.Type { return t.Tag }
func (t ValueUint) String() string    { return strconv.FormatUint(t.Value, 10) }
func (t ValueUint) Copy() Value       { return t }

////////////////////////////////////////////////////////////////

// ValueFloat holds a 32 or 64-bit float. 32-bit values round-trip exactly.
type ValueFloat struct {
	Tag   schema.Type
	Value float64
}

func (t ValueFloat) Type() schema.Type { return t.Tag }
func (t ValueFloat) String() string {
	bits := 64
	if t.Tag == schema.TypeF32 {
		bits = 32
	}
	return strconv.FormatFloat(t.Value, 'g', -1, bits)
}
func (t ValueFloat) Copy() Value { return t }

////////////////////////////////////////////////////////////////

// ValueString holds a String, MBString or Resource value.
type ValueString struct {
	Tag   schema.Type
	Value string
}

func (t ValueString) Type() schema.Type { return t.Tag }
func (t ValueString) String() string    { return t.Value }
func (t ValueString) Copy() Value       { return t }

////////////////////////////////////////////////////////////////

// ValueRuntimeType holds the name of an engine type.
type ValueRuntimeType string

func (ValueRuntimeType) Type() schema.Type { return schema.TypeRuntimeType }
func (t ValueRuntimeType) String() string  { return string(t) }
func (t ValueRuntimeType) Copy() Value     { return t }

////////////////////////////////////////////////////////////////

// ValueGUID holds a 16-byte identifier.
type ValueGUID struct {
	Tag   schema.Type
	Value [16]byte
}

func (t ValueGUID) Type() schema.Type { return t.Tag }

// String formats the GUID in its canonical mixed-endian form.
func (t ValueGUID) String() string {
	b := t.Value
	// First three groups are stored little-endian.
	d := []byte{
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	}
	s := hex.EncodeToString(d)
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
}
func (t ValueGUID) Copy() Value { return t }

////////////////////////////////////////////////////////////////

func joinFloats(v []float64, bits int) string {
	var s strings.Builder
	for i, f := range v {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(strconv.FormatFloat(f, 'g', -1, bits))
	}
	return s.String()
}

// ValueVector holds the float lanes of a vector, matrix or shape type.
type ValueVector struct {
	Tag   schema.Type
	Value []float32
}

func (t ValueVector) Type() schema.Type { return t.Tag }
func (t ValueVector) String() string {
	v := make([]float64, len(t.Value))
	for i, f := range t.Value {
		v[i] = float64(f)
	}
	return joinFloats(v, 32)
}
func (t ValueVector) Copy() Value {
	c := ValueVector{Tag: t.Tag, Value: make([]float32, len(t.Value))}
	copy(c.Value, t.Value)
	return c
}

// ValueVector64 holds the double lanes of a Position.
type ValueVector64 struct {
	Tag   schema.Type
	Value []float64
}

func (t ValueVector64) Type() schema.Type { return t.Tag }
func (t ValueVector64) String() string    { return joinFloats(t.Value, 64) }
func (t ValueVector64) Copy() Value {
	c := ValueVector64{Tag: t.Tag, Value: make([]float64, len(t.Value))}
	copy(c.Value, t.Value)
	return c
}

// ValueIntVector holds signed integer lanes.
type ValueIntVector struct {
	Tag   schema.Type
	Value []int32
}

func (t ValueIntVector) Type() schema.Type { return t.Tag }
func (t ValueIntVector) String() string {
	var s strings.Builder
	for i, v := range t.Value {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(strconv.FormatInt(int64(v), 10))
	}
	return s.String()
}
func (t ValueIntVector) Copy() Value {
	c := ValueIntVector{Tag: t.Tag, Value: make([]int32, len(t.Value))}
	copy(c.Value, t.Value)
	return c
}

// ValueUintVector holds unsigned integer lanes.
type ValueUintVector struct {
	Tag   schema.Type
	Value []uint32
}

func (t ValueUintVector) Type() schema.Type { return t.Tag }
func (t ValueUintVector) String() string {
	var s strings.Builder
	for i, v := range t.Value {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return s.String()
}
func (t ValueUintVector) Copy() Value {
	c := ValueUintVector{Tag: t.Tag, Value: make([]uint32, len(t.Value))}
	copy(c.Value, t.Value)
	return c
}

////////////////////////////////////////////////////////////////

// ValueRaw holds bytes whose meaning is not known.
type ValueRaw struct {
	Tag   schema.Type
	Value []byte
}

func (t ValueRaw) Type() schema.Type { return t.Tag }
func (t ValueRaw) String() string    { return hex.EncodeToString(t.Value) }
func (t ValueRaw) Copy() Value {
	c := ValueRaw{Tag: t.Tag, Value: make([]byte, len(t.Value))}
	copy(c.Value, t.Value)
	return c
}

////////////////////////////////////////////////////////////////

// ValueReference refers to another instance of the same container. A nil
// Instance is the null reference.
type ValueReference struct {
	Tag      schema.Type
	Instance *Instance
}

func (t ValueReference) Type() schema.Type { return t.Tag }
func (t ValueReference) String() string {
	if t.Instance == nil {
		return "<nil>"
	}
	return t.Instance.String()
}
func (t ValueReference) Copy() Value { return t }

////////////////////////////////////////////////////////////////

// ValueArray holds the elements of an array field. Tag is the type of the
// elements.
type ValueArray struct {
	Tag    schema.Type
	Values []Value
}

func (t ValueArray) Type() schema.Type { return t.Tag }
func (t ValueArray) String() string {
	var s strings.Builder
	s.WriteByte('[')
	for i, v := range t.Values {
		if i > 0 {
			s.WriteString("; ")
		}
		s.WriteString(v.String())
	}
	s.WriteByte(']')
	return s.String()
}
func (t ValueArray) Copy() Value {
	c := ValueArray{Tag: t.Tag, Values: make([]Value, len(t.Values))}
	for i, v := range t.Values {
		c.Values[i] = v.Copy()
	}
	return c
}
