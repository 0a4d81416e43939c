package declare

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rsztools/rszfile"
	"github.com/rsztools/rszfile/schema"
)

func normInt64(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func normUint64(v interface{}) (uint64, bool) {
	switch v := v.(type) {
	case uint:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	}
	n, ok := normInt64(v)
	return uint64(n), ok
}

func normFloat64(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	n, ok := normInt64(v)
	return float64(n), ok
}

func normString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// parseGUID parses the canonical form produced by ValueGUID.String.
func parseGUID(s string) (g [16]byte, ok bool) {
	d, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil || len(d) != 16 {
		return g, false
	}
	g = [16]byte{
		d[3], d[2], d[1], d[0],
		d[5], d[4],
		d[7], d[6],
		d[8], d[9],
		d[10], d[11], d[12], d[13], d[14], d[15],
	}
	return g, true
}

// value evaluates the declared values of field f.
func (b *builder) value(f *schema.Field, v []interface{}) (rszfile.Value, error) {
	t := f.Effective()
	if f.Array {
		if len(v) == 1 {
			if a, ok := v[0].(rszfile.ValueArray); ok {
				return a.Copy(), nil
			}
		}
		a := rszfile.ValueArray{Tag: t, Values: make([]rszfile.Value, 0, len(v))}
		for i, e := range v {
			var args []interface{}
			switch e := e.(type) {
			case []float64:
				for _, n := range e {
					args = append(args, n)
				}
			case []int32:
				for _, n := range e {
					args = append(args, n)
				}
			case []uint32:
				for _, n := range e {
					args = append(args, n)
				}
			default:
				args = []interface{}{e}
			}
			ev, err := b.scalar(t, f.Size, args)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			a.Values = append(a.Values, ev)
		}
		return a, nil
	}
	return b.scalar(t, f.Size, v)
}

// scalar evaluates a single value of type t occupying size bytes.
func (b *builder) scalar(t schema.Type, size int, v []interface{}) (rszfile.Value, error) {
	if len(v) == 1 {
		if rv, ok := v[0].(rszfile.Value); ok && rv != nil {
			if rv.Type() != t {
				return nil, fmt.Errorf("%w: %s value for %s", ErrValue, rv.Type(), t)
			}
			return rv.Copy(), nil
		}
	}

	mismatch := func() (rszfile.Value, error) {
		return nil, fmt.Errorf("%w: cannot use %v as %s", ErrValue, v, t)
	}
	first := func() interface{} {
		if len(v) == 0 {
			return nil
		}
		return v[0]
	}

	switch t.Kind() {
	case schema.KindBool:
		x, ok := first().(bool)
		if !ok {
			return mismatch()
		}
		return rszfile.ValueBool(x), nil

	case schema.KindInt:
		x, ok := normInt64(first())
		if !ok {
			return mismatch()
		}
		return rszfile.ValueInt{Tag: t, Value: x}, nil

	case schema.KindUint:
		x, ok := normUint64(first())
		if !ok {
			return mismatch()
		}
		return rszfile.ValueUint{Tag: t, Value: x}, nil

	case schema.KindFloat:
		x, ok := normFloat64(first())
		if !ok {
			return mismatch()
		}
		return rszfile.ValueFloat{Tag: t, Value: x}, nil

	case schema.KindString:
		x, ok := normString(first())
		if !ok {
			return mismatch()
		}
		return rszfile.ValueString{Tag: t, Value: x}, nil

	case schema.KindRuntimeType:
		x, ok := normString(first())
		if !ok {
			return mismatch()
		}
		return rszfile.ValueRuntimeType(x), nil

	case schema.KindReference:
		switch x := first().(type) {
		case nil:
			return rszfile.ValueReference{Tag: t}, nil
		case *rszfile.Instance:
			return rszfile.ValueReference{Tag: t, Instance: x}, nil
		case string:
			inst, ok := b.refs[x]
			if !ok {
				return nil, fmt.Errorf("%w %q", ErrRef, x)
			}
			return rszfile.ValueReference{Tag: t, Instance: inst}, nil
		case Ref:
			inst, ok := b.refs[string(x)]
			if !ok {
				return nil, fmt.Errorf("%w %q", ErrRef, x)
			}
			return rszfile.ValueReference{Tag: t, Instance: inst}, nil
		}
		return mismatch()

	case schema.KindGUID:
		switch x := first().(type) {
		case [16]byte:
			return rszfile.ValueGUID{Tag: t, Value: x}, nil
		case string:
			g, ok := parseGUID(x)
			if !ok {
				return mismatch()
			}
			return rszfile.ValueGUID{Tag: t, Value: g}, nil
		}
		return mismatch()

	case schema.KindVector:
		if len(v) != t.Lanes() {
			return mismatch()
		}
		x := rszfile.ValueVector{Tag: t, Value: make([]float32, len(v))}
		for i, e := range v {
			n, ok := normFloat64(e)
			if !ok {
				return mismatch()
			}
			x.Value[i] = float32(n)
		}
		return x, nil

	case schema.KindVector64:
		if len(v) != t.Lanes() {
			return mismatch()
		}
		x := rszfile.ValueVector64{Tag: t, Value: make([]float64, len(v))}
		for i, e := range v {
			n, ok := normFloat64(e)
			if !ok {
				return mismatch()
			}
			x.Value[i] = n
		}
		return x, nil

	case schema.KindIntVector:
		if len(v) != t.Lanes() {
			return mismatch()
		}
		x := rszfile.ValueIntVector{Tag: t, Value: make([]int32, len(v))}
		for i, e := range v {
			n, ok := normInt64(e)
			if !ok {
				return mismatch()
			}
			x.Value[i] = int32(n)
		}
		return x, nil

	case schema.KindUintVector:
		if len(v) != t.Lanes() {
			return mismatch()
		}
		x := rszfile.ValueUintVector{Tag: t, Value: make([]uint32, len(v))}
		for i, e := range v {
			n, ok := normUint64(e)
			if !ok {
				return mismatch()
			}
			x.Value[i] = uint32(n)
		}
		return x, nil

	case schema.KindRaw:
		x, ok := first().([]byte)
		n := t.Payload(size)
		if !ok || len(x) > n {
			return mismatch()
		}
		raw := make([]byte, n)
		copy(raw, x)
		return rszfile.ValueRaw{Tag: t, Value: raw}, nil
	}
	return mismatch()
}
