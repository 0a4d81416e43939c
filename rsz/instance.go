package rsz

import (
	"fmt"
	"math"
	"strings"

	"github.com/rsztools/rszfile"
	"github.com/rsztools/rszfile/schema"
	"github.com/rsztools/rszfile/stream"
)

// readInstance decodes the values of inst from the cursor of s. References
// are recorded in links and resolved once every instance is known.
func (st *decodeState) readInstance(s *stream.Stream, inst *rszfile.Instance) error {
	st.own = inst.Index
	for i, f := range inst.Class.Fields {
		if !f.Array {
			s.Align(int64(f.Align))
			v, err := st.readElement(s, inst, i, -1)
			if err != nil {
				return err
			}
			inst.Values[i] = v
			continue
		}

		s.Align(4)
		at := s.Pos()
		count, err := s.ReadInt32()
		if err != nil {
			return err
		}
		if count < 0 || int(count) > st.maxArrayLen() {
			return DataError{Offset: at, Cause: fieldError(inst, i, -1, fmt.Errorf("%w %d", ErrArrayLen, count))}
		}
		arr := rszfile.ValueArray{Values: make([]rszfile.Value, count)}
		if count > 0 {
			s.Align(int64(f.Align))
		}
		for j := range arr.Values {
			if f.Effective().IsString() {
				s.Align(4)
			}
			if arr.Values[j], err = st.readElement(s, inst, i, j); err != nil {
				return err
			}
		}
		arr.Tag = f.Effective()
		inst.Values[i] = arr
	}
	return nil
}

// readElement reads one value of field i, or one element of it. Opaque
// fields are classified by the first value read.
func (st *decodeState) readElement(s *stream.Stream, inst *rszfile.Instance, i, elem int) (rszfile.Value, error) {
	f := inst.Class.Fields[i]
	start := s.Pos()

	if f.Ambiguous() && elem <= 0 {
		raw, err := s.ReadUint32()
		if err != nil {
			return nil, err
		}
		s.Seek(start)
		t := st.heuristic().Classify(raw, st.own)
		st.schema.Infer(inst.Class, i, t)
		emitInfer(st.ctx, inst.Class.Name, f.Name, t.String(), st.own)
	} else if f.Inferred == schema.TypeObject && f.Type == schema.TypeData && elem > 0 {
		raw, err := s.ReadUint32()
		if err != nil {
			return nil, err
		}
		s.Seek(start)
		if raw != 0 && !st.heuristic().IsReference(raw, st.own) {
			return nil, DataError{Offset: start, Cause: InvariantError{
				Class:   inst.Class.Name,
				Field:   f.Name,
				Element: elem,
				Value:   raw,
			}}
		}
	}

	t := f.Effective()
	v, err := st.readScalar(s, t, f.Size)
	if err != nil {
		if _, ok := err.(DataError); ok {
			return nil, err
		}
		return nil, DataError{Offset: start, Cause: fieldError(inst, i, elem, err)}
	}
	if n := int64(f.Size); !t.IsString() && s.Pos()-start < n {
		s.Seek(start + n)
	}

	switch v := v.(type) {
	case rawReference:
		if v.index != 0 {
			st.links = append(st.links, rszfile.Link{Instance: inst, Field: i, Element: elem, Index: v.index})
		}
		return rszfile.ValueReference{Tag: t}, nil
	case rszfile.ValueString:
		if t == schema.TypeResource && suspiciousPath(v.Value) {
			st.warn(Warning{Kind: WarnResourcePath, Index: inst.Index, Class: inst.Class.Name, Field: f.Name, Msg: fmt.Sprintf("%q", v.Value)})
		}
	}
	return v, nil
}

// rawReference is a reference that has not been linked yet.
type rawReference struct {
	rszfile.ValueReference
	index int32
}

// readScalar reads one value of type t. size is the size declared by the
// field.
func (st *decodeState) readScalar(s *stream.Stream, t schema.Type, size int) (rszfile.Value, error) {
	switch t.Kind() {
	case schema.KindBool:
		b, err := s.ReadUint8()
		return rszfile.ValueBool(b != 0), err
	case schema.KindInt:
		v, err := readInt(s, t.Width())
		return rszfile.ValueInt{Tag: t, Value: v}, err
	case schema.KindUint:
		v, err := readUint(s, t.Width())
		return rszfile.ValueUint{Tag: t, Value: v}, err
	case schema.KindFloat:
		if t.Width() == 8 {
			v, err := s.ReadFloat64()
			return rszfile.ValueFloat{Tag: t, Value: v}, err
		}
		v, err := s.ReadFloat32()
		return rszfile.ValueFloat{Tag: t, Value: float64(v)}, err
	case schema.KindString:
		at := s.Pos()
		n, err := s.ReadInt32()
		if err != nil {
			return nil, err
		}
		if n < 0 || int64(n)*2 > s.Len()-s.Pos() {
			return nil, DataError{Offset: at, Cause: fmt.Errorf("invalid string length %d", n)}
		}
		v, err := s.ReadUTF16(int(n))
		return rszfile.ValueString{Tag: t, Value: v}, err
	case schema.KindRuntimeType:
		at := s.Pos()
		n, err := s.ReadInt32()
		if err != nil {
			return nil, err
		}
		if n < 0 || int64(n) > s.Len()-s.Pos() {
			return nil, DataError{Offset: at, Cause: fmt.Errorf("invalid type name length %d", n)}
		}
		b, err := s.ReadBytes(int(n))
		return rszfile.ValueRuntimeType(strings.TrimRight(string(b), "\x00")), err
	case schema.KindReference:
		v, err := s.ReadInt32()
		return rawReference{index: v}, err
	case schema.KindGUID:
		var v rszfile.ValueGUID
		v.Tag = t
		b, err := s.ReadBytes(16)
		copy(v.Value[:], b)
		return v, err
	case schema.KindVector:
		v := rszfile.ValueVector{Tag: t, Value: make([]float32, t.Lanes())}
		for i := range v.Value {
			f, err := s.ReadFloat32()
			if err != nil {
				return nil, err
			}
			v.Value[i] = f
		}
		return v, nil
	case schema.KindVector64:
		v := rszfile.ValueVector64{Tag: t, Value: make([]float64, t.Lanes())}
		for i := range v.Value {
			f, err := s.ReadFloat64()
			if err != nil {
				return nil, err
			}
			v.Value[i] = f
		}
		return v, nil
	case schema.KindIntVector:
		v := rszfile.ValueIntVector{Tag: t, Value: make([]int32, t.Lanes())}
		for i := range v.Value {
			n, err := s.ReadInt32()
			if err != nil {
				return nil, err
			}
			v.Value[i] = n
		}
		return v, nil
	case schema.KindUintVector:
		v := rszfile.ValueUintVector{Tag: t, Value: make([]uint32, t.Lanes())}
		for i := range v.Value {
			n, err := s.ReadUint32()
			if err != nil {
				return nil, err
			}
			v.Value[i] = n
		}
		return v, nil
	case schema.KindRaw:
		b, err := s.ReadBytes(t.Payload(size))
		return rszfile.ValueRaw{Tag: t, Value: b}, err
	}
	return nil, fmt.Errorf("%w %s", schema.ErrUnknownType, t)
}

func readInt(s *stream.Stream, width int) (int64, error) {
	switch width {
	case 1:
		v, err := s.ReadInt8()
		return int64(v), err
	case 2:
		v, err := s.ReadInt16()
		return int64(v), err
	case 4:
		v, err := s.ReadInt32()
		return int64(v), err
	default:
		return s.ReadInt64()
	}
}

func readUint(s *stream.Stream, width int) (uint64, error) {
	switch width {
	case 1:
		v, err := s.ReadUint8()
		return uint64(v), err
	case 2:
		v, err := s.ReadUint16()
		return uint64(v), err
	case 4:
		v, err := s.ReadUint32()
		return uint64(v), err
	default:
		return s.ReadUint64()
	}
}

// suspiciousPath reports resource paths that the engine would not produce.
func suspiciousPath(p string) bool {
	if p == "" {
		return false
	}
	return strings.ContainsAny(p, "\\:") ||
		strings.HasPrefix(p, "/") ||
		strings.TrimSpace(p) != p
}

////////////////////////////////////////////////////////////////

// writeInstance encodes the values of inst at the cursor of s.
func (st *encodeState) writeInstance(s *stream.Stream, inst *rszfile.Instance) error {
	if len(inst.Values) != len(inst.Class.Fields) {
		return fmt.Errorf("%s: %d values for %d fields", inst, len(inst.Values), len(inst.Class.Fields))
	}
	for i, f := range inst.Class.Fields {
		if !f.Array {
			if err := s.Pad(int64(f.Align)); err != nil {
				return err
			}
			if err := st.writeElement(s, inst, i, -1, inst.Values[i]); err != nil {
				return err
			}
			continue
		}

		arr, ok := inst.Values[i].(rszfile.ValueArray)
		if !ok {
			return fieldError(inst, i, -1, fmt.Errorf("%w: expected array, got %T", ErrValueType, inst.Values[i]))
		}
		if err := s.Pad(4); err != nil {
			return err
		}
		if err := s.WriteInt32(int32(len(arr.Values))); err != nil {
			return err
		}
		if len(arr.Values) > 0 {
			if err := s.Pad(int64(f.Align)); err != nil {
				return err
			}
		}
		for j, v := range arr.Values {
			if f.Effective().IsString() {
				if err := s.Pad(4); err != nil {
					return err
				}
			}
			if err := st.writeElement(s, inst, i, j, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *encodeState) writeElement(s *stream.Stream, inst *rszfile.Instance, i, elem int, v rszfile.Value) error {
	f := inst.Class.Fields[i]
	t := f.Effective()
	start := s.Pos()
	if err := writeScalar(s, t, f.Size, v); err != nil {
		return fieldError(inst, i, elem, err)
	}
	if n := int64(f.Size); !t.IsString() && s.Pos()-start < n {
		return s.WriteBytes(make([]byte, n-(s.Pos()-start)))
	}
	return nil
}

func writeScalar(s *stream.Stream, t schema.Type, size int, v rszfile.Value) error {
	mismatch := func() error {
		return fmt.Errorf("%w: %s field holds %T", ErrValueType, t, v)
	}
	switch t.Kind() {
	case schema.KindBool:
		b, ok := v.(rszfile.ValueBool)
		if !ok {
			return mismatch()
		}
		var n uint8
		if b {
			n = 1
		}
		return s.WriteUint8(n)
	case schema.KindInt:
		n, ok := v.(rszfile.ValueInt)
		if !ok {
			return mismatch()
		}
		return writeUint(s, t.Width(), uint64(n.Value))
	case schema.KindUint:
		n, ok := v.(rszfile.ValueUint)
		if !ok {
			return mismatch()
		}
		return writeUint(s, t.Width(), n.Value)
	case schema.KindFloat:
		f, ok := v.(rszfile.ValueFloat)
		if !ok {
			return mismatch()
		}
		if t.Width() == 8 {
			return s.WriteFloat64(f.Value)
		}
		return s.WriteFloat32(float32(f.Value))
	case schema.KindString:
		str, ok := v.(rszfile.ValueString)
		if !ok {
			return mismatch()
		}
		if str.Value == "" {
			return s.WriteInt32(0)
		}
		if err := s.WriteInt32(int32(stream.UTF16Len(str.Value) + 1)); err != nil {
			return err
		}
		_, err := s.WriteUTF16(str.Value)
		return err
	case schema.KindRuntimeType:
		name, ok := v.(rszfile.ValueRuntimeType)
		if !ok {
			return mismatch()
		}
		if err := s.WriteInt32(int32(len(name))); err != nil {
			return err
		}
		return s.WriteBytes([]byte(name))
	case schema.KindReference:
		ref, ok := v.(rszfile.ValueReference)
		if !ok {
			return mismatch()
		}
		var index int32
		if ref.Instance != nil && !ref.Instance.IsNull() {
			if ref.Instance.Index < 0 {
				return fmt.Errorf("reference to detached instance %s", ref.Instance.Class.Name)
			}
			index = int32(ref.Instance.Index)
		}
		return s.WriteInt32(index)
	case schema.KindGUID:
		g, ok := v.(rszfile.ValueGUID)
		if !ok {
			return mismatch()
		}
		return s.WriteBytes(g.Value[:])
	case schema.KindVector:
		vec, ok := v.(rszfile.ValueVector)
		if !ok || len(vec.Value) != t.Lanes() {
			return mismatch()
		}
		for _, f := range vec.Value {
			if err := s.WriteUint32(math.Float32bits(f)); err != nil {
				return err
			}
		}
		return nil
	case schema.KindVector64:
		vec, ok := v.(rszfile.ValueVector64)
		if !ok || len(vec.Value) != t.Lanes() {
			return mismatch()
		}
		for _, f := range vec.Value {
			if err := s.WriteFloat64(f); err != nil {
				return err
			}
		}
		return nil
	case schema.KindIntVector:
		vec, ok := v.(rszfile.ValueIntVector)
		if !ok || len(vec.Value) != t.Lanes() {
			return mismatch()
		}
		for _, n := range vec.Value {
			if err := s.WriteInt32(n); err != nil {
				return err
			}
		}
		return nil
	case schema.KindUintVector:
		vec, ok := v.(rszfile.ValueUintVector)
		if !ok || len(vec.Value) != t.Lanes() {
			return mismatch()
		}
		for _, n := range vec.Value {
			if err := s.WriteUint32(n); err != nil {
				return err
			}
		}
		return nil
	case schema.KindRaw:
		raw, ok := v.(rszfile.ValueRaw)
		if !ok || len(raw.Value) != t.Payload(size) {
			return mismatch()
		}
		return s.WriteBytes(raw.Value)
	}
	return fmt.Errorf("%w %s", schema.ErrUnknownType, t)
}

func writeUint(s *stream.Stream, width int, v uint64) error {
	switch width {
	case 1:
		return s.WriteUint8(uint8(v))
	case 2:
		return s.WriteUint16(uint16(v))
	case 4:
		return s.WriteUint32(uint32(v))
	default:
		return s.WriteUint64(v)
	}
}

func fieldError(inst *rszfile.Instance, i, elem int, err error) error {
	return FieldError{
		Class:   inst.Class.Name,
		Field:   inst.Class.Fields[i].Name,
		Index:   inst.Index,
		Element: elem,
		Cause:   err,
	}
}
