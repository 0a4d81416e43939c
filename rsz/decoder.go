package rsz

import (
	"context"
	"fmt"
	"time"

	"github.com/rsztools/rszfile"
	"github.com/rsztools/rszfile/errors"
	"github.com/rsztools/rszfile/schema"
	"github.com/rsztools/rszfile/stream"
)

// Decoder decodes RSZ containers into rszfile.Containers.
//
// Decoding may resolve opaque fields of the schema, which mutates it. A
// schema shared by decoders running concurrently must be guarded by the
// caller.
type Decoder struct {
	// Schema describes the classes of the container. Required.
	Schema *schema.Store

	// Policy lists the references that are expected to look unusual. May be
	// nil.
	Policy *schema.Policy

	// Heuristic resolves opaque fields. The zero value selects
	// DefaultHeuristic.
	Heuristic Heuristic

	// MaxArrayLen bounds array counts. Zero selects MaxArrayLen.
	MaxArrayLen int

	// EmbeddedUserData selects the layout of user data entries. When true,
	// entries hold nested containers; otherwise they hold paths to external
	// files.
	EmbeddedUserData bool
}

// decodeState holds the progress of one container decode.
type decodeState struct {
	ctx    context.Context
	d      *Decoder
	schema *schema.Store
	links  rszfile.Links
	warns  errors.Errors
	own    int
}

func (st *decodeState) heuristic() Heuristic {
	if st.d.Heuristic == (Heuristic{}) {
		return DefaultHeuristic
	}
	return st.d.Heuristic
}

func (st *decodeState) maxArrayLen() int {
	if st.d.MaxArrayLen <= 0 {
		return MaxArrayLen
	}
	return st.d.MaxArrayLen
}

func (st *decodeState) warn(w Warning) {
	st.warns = append(st.warns, w)
	emitWarning(st.ctx, w)
}

// Decode reads a container starting at the cursor of s. Offsets within the
// container are relative to that position. On success, the cursor of s is
// left unchanged.
//
// Returned warnings are Warning values collected into an errors.Errors.
func (d Decoder) Decode(s *stream.Stream) (c *rszfile.Container, warn, err error) {
	return d.DecodeContext(context.Background(), s)
}

// DecodeContext is like Decode, with ctx passed to emitted signals.
func (d Decoder) DecodeContext(ctx context.Context, s *stream.Stream) (c *rszfile.Container, warn, err error) {
	if s == nil {
		return nil, nil, errors.New("nil stream")
	}
	if d.Schema == nil {
		return nil, nil, errors.New("nil schema")
	}
	start := time.Now()
	st := &decodeState{ctx: ctx, d: &d, schema: d.Schema}
	c, err = st.decode(s.Window(s.Pos()))
	warn = st.warns.Return()
	n := 0
	if c != nil {
		n = len(c.Instances)
	}
	emitDecodeComplete(ctx, n, len(st.warns), time.Since(start), err)
	if err != nil {
		return nil, warn, err
	}
	return c, warn, nil
}

// ReadRsz decodes the container at offset of s with the default decoder
// options. The cursor of s is moved to offset.
func ReadRsz(s *stream.Stream, offset int64, store *schema.Store) (c *rszfile.Container, warn, err error) {
	if err := s.Seek(offset); err != nil {
		return nil, nil, err
	}
	return Decoder{Schema: store}.Decode(s)
}

// decode reads a container from the origin of s.
func (st *decodeState) decode(s *stream.Stream) (*rszfile.Container, error) {
	h, err := readHeader(s)
	if err != nil {
		return nil, DataError{Offset: s.Pos(), Cause: err}
	}
	udEntry := int64(pathEntrySize)
	if st.d.EmbeddedUserData {
		udEntry = embeddedEntrySize
	}
	if err := h.check(s.Len(), udEntry); err != nil {
		return nil, DataError{Offset: 0, Cause: err}
	}
	if h.Reserved != 0 {
		st.warn(Warning{Kind: WarnReserved, Index: -1, Msg: fmt.Sprintf("%#x", uint32(h.Reserved))})
	}

	c := &rszfile.Container{
		Version:          h.Version,
		EmbeddedUserData: st.d.EmbeddedUserData,
		Instances:        make([]*rszfile.Instance, h.InstanceCount),
		ObjectTable:      make([]int, h.ObjectCount),
	}
	c.Instances[0] = rszfile.Null

	for i := range c.ObjectTable {
		at := s.Pos()
		v, err := s.ReadInt32()
		if err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		if v <= 0 || v >= h.InstanceCount {
			return nil, DataError{Offset: at, Cause: fmt.Errorf("object %d refers to instance %d of %d", i, v, h.InstanceCount)}
		}
		c.ObjectTable[i] = int(v)
	}

	// Instance infos.
	classes := make([]*schema.Class, h.InstanceCount)
	s.Seek(h.InstanceOffset)
	for i := range classes {
		at := s.Pos()
		hash, err := s.ReadUint32()
		if err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		if _, err := s.ReadUint32(); err != nil {
			return nil, DataError{Offset: at + 4, Cause: err}
		}
		if i == 0 {
			continue
		}
		class := st.schema.Class(hash)
		if class == nil || class.IsNull() {
			return nil, DataError{Offset: at, Cause: fmt.Errorf("%w %08x at instance %d", ErrUnknownClass, hash, i)}
		}
		classes[i] = class
	}

	// User data.
	s.Seek(h.UserDataOffset)
	for i := 0; i < int(h.UserDataCount); i++ {
		inst, err := st.readUserData(s, h, classes)
		if err != nil {
			return nil, err
		}
		if c.Instances[inst.Index] != nil {
			return nil, DataError{Offset: s.Pos(), Cause: fmt.Errorf("%w: %d listed twice", ErrUserDataIndex, inst.Index)}
		}
		c.Instances[inst.Index] = inst
		c.UserData = append(c.UserData, inst.UserData)
	}

	// Instance data.
	s.Seek(h.DataOffset)
	for i := 1; i < len(c.Instances); i++ {
		if c.Instances[i] != nil {
			continue
		}
		inst := rszfile.NewInstance(classes[i])
		inst.Index = i
		c.Instances[i] = inst
		if err := st.readInstance(s, inst); err != nil {
			if _, ok := err.(DataError); ok {
				return nil, err
			}
			return nil, DataError{Offset: s.Pos(), Cause: fmt.Errorf("%s: %w", inst, err)}
		}
	}

	if err := st.link(c); err != nil {
		return nil, DataError{Offset: -1, Cause: err}
	}
	return c, nil
}

// readUserData reads one user data entry and returns its stand-in instance.
func (st *decodeState) readUserData(s *stream.Stream, h header, classes []*schema.Class) (*rszfile.Instance, error) {
	at := s.Pos()
	id, err := s.ReadInt32()
	if err != nil {
		return nil, DataError{Offset: at, Cause: err}
	}
	if id <= 0 || id >= h.InstanceCount {
		return nil, DataError{Offset: at, Cause: fmt.Errorf("%w: %d", ErrUserDataIndex, id)}
	}
	hash, err := s.ReadUint32()
	if err != nil {
		return nil, DataError{Offset: at, Cause: err}
	}
	ud := rszfile.UserData{Hash: hash}

	if !st.d.EmbeddedUserData {
		off, err := s.ReadInt64()
		if err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		next := s.Pos()
		if err := s.Seek(off); err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		if ud.Path, err = s.ReadUTF16Z(); err != nil {
			return nil, DataError{Offset: off, Cause: err}
		}
		s.Seek(next)
	} else {
		if ud.PathHash, err = s.ReadUint32(); err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		size, err := s.ReadUint32()
		if err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		off, err := s.ReadInt64()
		if err != nil {
			return nil, DataError{Offset: at, Cause: err}
		}
		if off < 0 || off+int64(size) > s.Len() {
			return nil, DataError{Offset: at, Cause: fmt.Errorf("embedded container at %d+%d exceeds data", off, size)}
		}
		nested := &decodeState{ctx: st.ctx, d: st.d, schema: st.schema}
		ud.Embedded, err = nested.decode(s.Window(off))
		st.warns = append(st.warns, nested.warns...)
		if err != nil {
			return nil, ContainerError{Instance: int(id), Offset: off, Cause: err}
		}
	}

	inst := rszfile.NewUserDataInstance(classes[id], ud)
	inst.Index = int(id)
	return inst, nil
}

// link resolves the references of c, then reports references that the
// policy considers unusual.
func (st *decodeState) link(c *rszfile.Container) error {
	if err := st.links.Resolve(c.Instances); err != nil {
		return err
	}
	policy := st.d.Policy
	seen := make(map[int32]bool, len(st.links))
	for _, l := range st.links {
		class := l.Instance.Class
		field := class.Fields[l.Field].Name
		target := c.Instances[l.Index]
		if seen[l.Index] && !policy.DuplicateAllowed(class.Name, field) {
			st.warn(Warning{
				Kind:  WarnDuplicateRef,
				Index: l.Instance.Index,
				Class: class.Name,
				Field: field,
				Msg:   fmt.Sprintf("%s is already referenced", target),
			})
		}
		seen[l.Index] = true
		if policy.TargetDisallowed(target.Class.Name) {
			st.warn(Warning{
				Kind:  WarnDisallowedTarget,
				Index: l.Instance.Index,
				Class: class.Name,
				Field: field,
				Msg:   target.String(),
			})
		}
	}
	return nil
}
