package rsz

import (
	"context"
	"fmt"
	"time"

	"github.com/rsztools/rszfile"
	"github.com/rsztools/rszfile/errors"
	"github.com/rsztools/rszfile/stream"
)

// ErrStaleIndex indicates an instance list whose indices do not match the
// positions of its instances. RebuildInstanceList restores them.
var ErrStaleIndex = errors.New("instance index does not match its position")

// Encoder encodes rszfile.Containers as RSZ containers.
type Encoder struct {
	// Version overrides the version written to the header. Zero keeps the
	// version of the container.
	Version uint32
}

type encodeState struct {
	ctx context.Context
	e   *Encoder
}

// Encode writes c at the cursor of s, and leaves the cursor after the
// container. Returns the number of bytes written.
//
// The instance list of c must be consistent: every instance at its own
// index, and every referenced instance in the list. Graphs modified since
// they were decoded are made consistent by RebuildInstanceList.
func (e Encoder) Encode(c *rszfile.Container, s *stream.Stream) (n int64, err error) {
	return e.EncodeContext(context.Background(), c, s)
}

// EncodeContext is like Encode, with ctx passed to emitted signals.
func (e Encoder) EncodeContext(ctx context.Context, c *rszfile.Container, s *stream.Stream) (n int64, err error) {
	if c == nil {
		return 0, errors.New("nil container")
	}
	if s == nil {
		return 0, errors.New("nil stream")
	}
	start := time.Now()
	st := &encodeState{ctx: ctx, e: &e}
	origin := s.Pos()
	n, err = st.encode(c, s.Window(origin))
	emitEncodeComplete(ctx, len(c.Instances), n, time.Since(start), err)
	if err != nil {
		return n, err
	}
	return n, s.Seek(origin + n)
}

// WriteRsz encodes c at offset of s with the default encoder options.
func WriteRsz(c *rszfile.Container, s *stream.Stream, offset int64) (n int64, err error) {
	if err := s.Seek(offset); err != nil {
		return 0, err
	}
	return Encoder{}.Encode(c, s)
}

// check verifies that the tables of c can be encoded.
func check(c *rszfile.Container) error {
	if len(c.Instances) == 0 || !c.Instances[0].IsNull() {
		return fmt.Errorf("%w: index 0 is not null", ErrStaleIndex)
	}
	for i, inst := range c.Instances[1:] {
		if inst == nil || inst.Index != i+1 {
			return fmt.Errorf("%w: %v at %d", ErrStaleIndex, inst, i+1)
		}
	}
	for _, inst := range c.Instances[1:] {
		var err error
		inst.EachReference(func(field, elem int, ref *rszfile.Instance) bool {
			if c.Instance(ref.Index) != ref {
				err = fmt.Errorf("%w: %s.%s refers to %v outside of the container",
					ErrStaleIndex, inst, inst.Class.Fields[field].Name, ref)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	for _, i := range c.ObjectTable {
		if i <= 0 || i >= len(c.Instances) {
			return fmt.Errorf("object table refers to instance %d of %d", i, len(c.Instances))
		}
	}
	for _, ud := range c.UserData {
		if ud.Instance == nil || c.Instance(ud.Instance.Index) != ud.Instance {
			return fmt.Errorf("%w: user data of %v is not listed", ErrStaleIndex, ud.Instance)
		}
		if c.EmbeddedUserData && ud.Embedded == nil {
			return fmt.Errorf("user data of %v has no embedded container", ud.Instance)
		}
	}
	return nil
}

func (st *encodeState) encode(c *rszfile.Container, s *stream.Stream) (int64, error) {
	if err := check(c); err != nil {
		return 0, err
	}

	h := header{
		Magic:         Magic,
		Version:       c.Version,
		ObjectCount:   int32(len(c.ObjectTable)),
		InstanceCount: int32(len(c.Instances)),
		UserDataCount: int32(len(c.UserData)),
	}
	if st.e.Version != 0 {
		h.Version = st.e.Version
	}
	if err := writeHeader(s, h); err != nil {
		return 0, err
	}
	for _, i := range c.ObjectTable {
		if err := s.WriteInt32(int32(i)); err != nil {
			return s.Pos(), err
		}
	}

	// Instance infos.
	if err := s.Pad(16); err != nil {
		return s.Pos(), err
	}
	if err := s.SlotAt(offInstanceOffset, 8).Set(s.Pos()); err != nil {
		return s.Pos(), err
	}
	for _, inst := range c.Instances {
		if err := s.WriteUint32(inst.Class.Hash); err != nil {
			return s.Pos(), err
		}
		if err := s.WriteUint32(inst.Class.CRC); err != nil {
			return s.Pos(), err
		}
	}

	// User data.
	if err := s.Pad(16); err != nil {
		return s.Pos(), err
	}
	if err := s.SlotAt(offUserDataOffset, 8).Set(s.Pos()); err != nil {
		return s.Pos(), err
	}
	var err error
	if c.EmbeddedUserData {
		err = st.writeEmbedded(c, s)
	} else {
		err = writePaths(c, s)
	}
	if err != nil {
		return s.Pos(), err
	}

	// Instance data.
	if err := s.Pad(16); err != nil {
		return s.Pos(), err
	}
	if err := s.SlotAt(offDataOffset, 8).Set(s.Pos()); err != nil {
		return s.Pos(), err
	}
	for _, inst := range c.Instances[1:] {
		if inst.IsUserData() {
			continue
		}
		if err := st.writeInstance(s, inst); err != nil {
			return s.Pos(), DataError{Offset: s.Pos(), Cause: err}
		}
	}
	return s.Pos(), nil
}

// writePaths writes user data entries referring to external files, followed
// by the table of their paths.
func writePaths(c *rszfile.Container, s *stream.Stream) error {
	var paths stream.StringTable
	for _, ud := range c.UserData {
		if err := s.WriteInt32(int32(ud.Instance.Index)); err != nil {
			return err
		}
		if err := s.WriteUint32(ud.Hash); err != nil {
			return err
		}
		slot, err := s.Reserve(8)
		if err != nil {
			return err
		}
		paths.Add(slot, ud.Path)
	}
	return paths.Flush(s)
}

// writeEmbedded writes user data entries holding nested containers, followed
// by the containers themselves.
func (st *encodeState) writeEmbedded(c *rszfile.Container, s *stream.Stream) error {
	type pending struct {
		size, offset stream.Slot
		ud           *rszfile.UserData
	}
	entries := make([]pending, len(c.UserData))
	for i, ud := range c.UserData {
		if err := s.WriteInt32(int32(ud.Instance.Index)); err != nil {
			return err
		}
		if err := s.WriteUint32(ud.Hash); err != nil {
			return err
		}
		if err := s.WriteUint32(ud.PathHash); err != nil {
			return err
		}
		size, err := s.Reserve(4)
		if err != nil {
			return err
		}
		offset, err := s.Reserve(8)
		if err != nil {
			return err
		}
		entries[i] = pending{size: size, offset: offset, ud: ud}
	}
	for _, e := range entries {
		if err := s.Pad(16); err != nil {
			return err
		}
		at := s.Pos()
		n, err := st.encode(e.ud.Embedded, s.Window(at))
		if err != nil {
			return ContainerError{Instance: e.ud.Instance.Index, Offset: at, Cause: err}
		}
		if err := e.size.Set(n); err != nil {
			return err
		}
		if err := e.offset.Set(at); err != nil {
			return err
		}
		if err := s.Seek(at + n); err != nil {
			return err
		}
	}
	return nil
}
