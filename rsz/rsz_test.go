package rsz_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/rsztools/rszfile"
	rszerrors "github.com/rsztools/rszfile/errors"
	"github.com/rsztools/rszfile/rsz"
	"github.com/rsztools/rszfile/schema"
	"github.com/rsztools/rszfile/stream"
)

func field(name string, t schema.Type, array bool) *schema.Field {
	return &schema.Field{Name: name, Type: t, Array: array, Size: t.Size(), Align: t.Align()}
}

func opaque(name string, array bool) *schema.Field {
	return &schema.Field{Name: name, Type: schema.TypeData, Array: array, Size: 4, Align: 4, Native: true}
}

const (
	hashRoot   = 0x100
	hashItem   = 0x200
	hashData   = 0x300
	hashHolder = 0x400
	hashFiller = 0x500
	hashText   = 0x600
)

// newStore returns a fresh schema. holder describes the fields of
// app.Holder, which tests declare either with concrete or opaque types.
func newStore(holder ...*schema.Field) *schema.Store {
	return schema.NewStore(
		schema.NewClass("app.Root", hashRoot, 0xAAAA,
			field("Name", schema.TypeString, false),
			field("Child", schema.TypeObject, false),
			field("Items", schema.TypeObject, true),
			field("Pos", schema.TypeVec3, false),
			field("Flags", schema.TypeU8, false),
			field("Weight", schema.TypeF32, false),
			field("Tags", schema.TypeString, true),
			field("Kind", schema.TypeRuntimeType, false),
			&schema.Field{Name: "Blob", Type: schema.TypeData, Size: 6, Align: 1},
			field("Id", schema.TypeGuid, false),
			field("Count", schema.TypeS64, false),
			field("Data", schema.TypeUserData, false),
			field("Path", schema.TypeResource, false),
		),
		schema.NewClass("app.Item", hashItem, 0xBBBB,
			field("Value", schema.TypeS32, false),
			field("Next", schema.TypeObject, false),
		),
		schema.NewClass("app.Data", hashData, 0),
		schema.NewClass("app.Holder", hashHolder, 0, holder...),
		schema.NewClass("app.Filler", hashFiller, 0,
			field("X", schema.TypeS32, false),
		),
		schema.NewClass("app.Text", hashText, 0,
			field("S", schema.TypeString, false),
			field("After", schema.TypeU32, false),
		),
	)
}

func str(t schema.Type, v string) rszfile.ValueString {
	return rszfile.ValueString{Tag: t, Value: v}
}

func ref(t schema.Type, inst *rszfile.Instance) rszfile.ValueReference {
	return rszfile.ValueReference{Tag: t, Instance: inst}
}

// sample returns a container exercising every kind of value.
func sample(store *schema.Store, path string) (*rszfile.Container, *rszfile.Instance) {
	item := func(v int64, next *rszfile.Instance) *rszfile.Instance {
		inst := rszfile.NewInstance(store.ClassByName("app.Item"))
		inst.Set("Value", rszfile.ValueInt{Tag: schema.TypeS32, Value: v})
		inst.Set("Next", ref(schema.TypeObject, next))
		return inst
	}
	shared := item(3, nil)
	a := item(1, shared)
	b := item(2, shared)
	ud := rszfile.NewUserDataInstance(store.ClassByName("app.Data"), rszfile.UserData{Hash: hashData, Path: path})

	root := rszfile.NewInstance(store.ClassByName("app.Root"))
	root.Set("Name", str(schema.TypeString, "héllo wörld"))
	root.Set("Child", ref(schema.TypeObject, a))
	root.Set("Items", rszfile.ValueArray{Tag: schema.TypeObject, Values: []rszfile.Value{
		ref(schema.TypeObject, a),
		ref(schema.TypeObject, nil),
		ref(schema.TypeObject, b),
	}})
	root.Set("Pos", rszfile.ValueVector{Tag: schema.TypeVec3, Value: []float32{1, 2.5, -3}})
	root.Set("Flags", rszfile.ValueUint{Tag: schema.TypeU8, Value: 7})
	root.Set("Weight", rszfile.ValueFloat{Tag: schema.TypeF32, Value: 0.25})
	root.Set("Tags", rszfile.ValueArray{Tag: schema.TypeString, Values: []rszfile.Value{
		str(schema.TypeString, "a"),
		str(schema.TypeString, ""),
		str(schema.TypeString, "abc"),
	}})
	root.Set("Kind", rszfile.ValueRuntimeType("app.Item"))
	root.Set("Blob", rszfile.ValueRaw{Tag: schema.TypeData, Value: []byte{1, 2, 3, 4, 5, 6}})
	root.Set("Id", rszfile.ValueGUID{Tag: schema.TypeGuid, Value: [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}})
	root.Set("Count", rszfile.ValueInt{Tag: schema.TypeS64, Value: -1 << 40})
	root.Set("Data", ref(schema.TypeUserData, ud))
	root.Set("Path", str(schema.TypeResource, "textures/a.tex"))

	c := rszfile.NewContainer()
	c.RebuildInstanceList(root)
	return c, root
}

func encode(t *testing.T, c *rszfile.Container) []byte {
	t.Helper()
	s := stream.NewWriter()
	n, err := rsz.Encoder{}.Encode(c, s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != s.Len() {
		t.Errorf("reported %d bytes, wrote %d", n, s.Len())
	}
	return s.Bytes()
}

func dump(t *testing.T, c *rszfile.Container) string {
	t.Helper()
	var buf strings.Builder
	if err := rsz.Dump(&buf, c); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestRoundTrip(t *testing.T) {
	store := newStore()
	c, _ := sample(store, "data/item.user")
	b := encode(t, c)

	got, _, err := rsz.Decoder{Schema: newStore()}.Decode(stream.New(b))
	if err != nil {
		t.Fatal(err)
	}
	td.Cmp(t, dump(t, got), dump(t, c))
	td.Cmp(t, got.ObjectTable, c.ObjectTable)

	root := got.Objects()[0]
	td.Cmp(t, root.Get("Name"), str(schema.TypeString, "héllo wörld"))
	child := root.Get("Child").(rszfile.ValueReference).Instance
	items := root.Get("Items").(rszfile.ValueArray).Values
	if items[0].(rszfile.ValueReference).Instance != child {
		t.Errorf("shared reference decoded as distinct instances")
	}
	if items[1].(rszfile.ValueReference).Instance != nil {
		t.Errorf("null reference decoded as instance")
	}
	data := root.Get("Data").(rszfile.ValueReference).Instance
	if !data.IsUserData() || data.UserData.Path != "data/item.user" {
		t.Errorf("user data not linked: %+v", data)
	}
	if len(got.UserData) != 1 || got.UserData[0].Instance != data {
		t.Errorf("user data table %+v", got.UserData)
	}

	// Re-encoding the decoded graph reproduces the same bytes.
	if !bytes.Equal(encode(t, got), b) {
		t.Errorf("re-encoded container differs")
	}
}

func TestEmbeddedUserData(t *testing.T) {
	store := newStore()
	inner, _ := sample(store, "")
	inner.EmbeddedUserData = true
	nestedData := inner.UserData[0]
	nestedData.Embedded = rszfile.NewContainer()
	filler := rszfile.NewInstance(store.ClassByName("app.Filler"))
	filler.Set("X", rszfile.ValueInt{Tag: schema.TypeS32, Value: 42})
	nestedData.Embedded.RebuildInstanceList(filler)
	nestedData.Embedded.EmbeddedUserData = true
	nestedData.PathHash = 0xCAFEBABE

	b := encode(t, inner)
	got, _, err := rsz.Decoder{Schema: newStore(), EmbeddedUserData: true}.Decode(stream.New(b))
	if err != nil {
		t.Fatal(err)
	}
	td.Cmp(t, dump(t, got), dump(t, inner))
	ud := got.UserData[0]
	if ud.Embedded == nil || ud.PathHash != 0xCAFEBABE {
		t.Fatalf("embedded container not decoded: %+v", ud)
	}
	td.Cmp(t, ud.Embedded.Objects()[0].Get("X"), rszfile.ValueInt{Tag: schema.TypeS32, Value: 42})

	// Corrupt the nested header.
	bad := bytes.Clone(b)
	i := bytes.LastIndex(bad, []byte("RSZ\x00"))
	bad[i] = 'X'
	_, _, err = rsz.Decoder{Schema: newStore(), EmbeddedUserData: true}.Decode(stream.New(bad))
	var cerr rsz.ContainerError
	if !errors.As(err, &cerr) || !errors.Is(err, rsz.ErrInvalidSig) {
		t.Errorf("expected nested container error, got %v", err)
	}
}

func TestReadWriteAtOffset(t *testing.T) {
	store := newStore()
	c, _ := sample(store, "a.user")
	s := stream.NewWriter()
	s.WriteBytes(bytes.Repeat([]byte{0xFF}, 40))
	n, err := rsz.WriteRsz(c, s, 40)
	if err != nil {
		t.Fatal(err)
	}
	if s.Pos() != 40+n {
		t.Errorf("cursor at %d, want %d", s.Pos(), 40+n)
	}
	got, _, err := rsz.ReadRsz(stream.New(s.Bytes()), 40, newStore())
	if err != nil {
		t.Fatal(err)
	}
	td.Cmp(t, dump(t, got), dump(t, c))
	td.Cmp(t, rsz.Find(s.Bytes()), []int64{40})
}

func TestFind(t *testing.T) {
	store := newStore()
	c, _ := sample(store, "a.user")
	b := encode(t, c)
	data := append([]byte("junk RSZ\x00 not a header"), b...)
	data = append(data, "trailing"...)
	td.Cmp(t, rsz.Find(data), []int64{int64(len("junk RSZ\x00 not a header"))})
	if rsz.Find([]byte("RSZ")) != nil {
		t.Errorf("found container in short data")
	}
}

// holderContainer returns a container whose app.Holder instance is at index
// 11, after ten fillers, and holds vals in a concrete S32 field.
func holderContainer(store *schema.Store, array bool, vals ...uint32) *rszfile.Container {
	var roots []*rszfile.Instance
	for i := 0; i < 10; i++ {
		f := rszfile.NewInstance(store.ClassByName("app.Filler"))
		f.Set("X", rszfile.ValueInt{Tag: schema.TypeS32, Value: int64(i)})
		roots = append(roots, f)
	}
	h := rszfile.NewInstance(store.ClassByName("app.Holder"))
	if array {
		arr := rszfile.ValueArray{Tag: schema.TypeS32}
		for _, v := range vals {
			arr.Values = append(arr.Values, rszfile.ValueInt{Tag: schema.TypeS32, Value: int64(int32(v))})
		}
		h.Set("V", arr)
	} else {
		h.Set("V", rszfile.ValueInt{Tag: schema.TypeS32, Value: int64(int32(vals[0]))})
	}
	roots = append(roots, h)
	c := rszfile.NewContainer()
	c.RebuildInstanceList(roots...)
	return c
}

func TestClassify(t *testing.T) {
	h := rsz.DefaultHeuristic
	td.Cmp(t, h.Classify(5, 10), schema.TypeObject)
	td.Cmp(t, h.Classify(math.Float32bits(1.5), 10), schema.TypeF32)
	td.Cmp(t, h.Classify(200000, 10), schema.TypeS32)
	td.Cmp(t, h.Classify(2, 10), schema.TypeS32)
	td.Cmp(t, h.Classify(0, 10), schema.TypeS32)
	td.Cmp(t, h.Classify(5, 200), schema.TypeS32)
	td.Cmp(t, h.Classify(math.Float32bits(float32(math.Inf(1))), 10), schema.TypeS32)

	// Window edges, relative to the instance holding the value.
	td.Cmp(t, h.Classify(200, 200), schema.TypeS32)
	td.Cmp(t, h.Classify(200-101, 200), schema.TypeS32)
	td.Cmp(t, h.Classify(200-100, 200), schema.TypeObject)
	td.Cmp(t, h.Classify(199, 200), schema.TypeObject)
	td.Cmp(t, h.Classify(3, 10), schema.TypeObject)

	narrow := rsz.Heuristic{MinIndex: 6, Window: 101, FloatMin: 1e-7, FloatMax: 1e7}
	td.Cmp(t, narrow.Classify(5, 10), schema.TypeS32)
}

func TestInferScalar(t *testing.T) {
	cases := []struct {
		raw  uint32
		want schema.Type
		val  rszfile.Value
	}{
		{5, schema.TypeObject, nil},
		{math.Float32bits(1.5), schema.TypeF32, rszfile.ValueFloat{Tag: schema.TypeF32, Value: 1.5}},
		{200000, schema.TypeS32, rszfile.ValueInt{Tag: schema.TypeS32, Value: 200000}},
	}
	for _, tc := range cases {
		b := encode(t, holderContainer(newStore(field("V", schema.TypeS32, false)), false, tc.raw))

		store := newStore(opaque("V", false))
		c, _, err := rsz.Decoder{Schema: store}.Decode(stream.New(b))
		if err != nil {
			t.Fatal(err)
		}
		holder := store.ClassByName("app.Holder")
		td.Cmp(t, holder.Fields[0].Effective(), tc.want)
		td.Cmp(t, store.Patches.Get("app.Holder"), []schema.FieldPatch{{Name: "V", Type: tc.want.String()}})

		v := c.Instances[11].Get("V")
		if tc.want == schema.TypeObject {
			if r, ok := v.(rszfile.ValueReference); !ok || r.Instance != c.Instances[5] {
				t.Errorf("inferred reference not linked: %v", v)
			}
			continue
		}
		td.Cmp(t, v, tc.val)
	}
}

func TestInferArray(t *testing.T) {
	b := encode(t, holderContainer(newStore(field("V", schema.TypeS32, true)), true, 5, 0, 7))
	store := newStore(opaque("V", true))
	c, _, err := rsz.Decoder{Schema: store}.Decode(stream.New(b))
	if err != nil {
		t.Fatal(err)
	}
	arr := c.Instances[11].Get("V").(rszfile.ValueArray)
	td.Cmp(t, arr.Tag, schema.TypeObject)
	got := []*rszfile.Instance{}
	for _, v := range arr.Values {
		got = append(got, v.(rszfile.ValueReference).Instance)
	}
	if got[0] != c.Instances[5] || got[1] != nil || got[2] != c.Instances[7] {
		t.Errorf("unexpected references %v", got)
	}
}

func TestInferContradiction(t *testing.T) {
	b := encode(t, holderContainer(newStore(field("V", schema.TypeS32, true)), true, 5, 200000))
	_, _, err := rsz.Decoder{Schema: newStore(opaque("V", true))}.Decode(stream.New(b))
	var ierr rsz.InvariantError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	td.Cmp(t, ierr, rsz.InvariantError{Class: "app.Holder", Field: "V", Element: 1, Value: 200000})
}

func textContainer(store *schema.Store, s string) *rszfile.Container {
	inst := rszfile.NewInstance(store.ClassByName("app.Text"))
	inst.Set("S", str(schema.TypeString, s))
	inst.Set("After", rszfile.ValueUint{Tag: schema.TypeU32, Value: 0xAABBCCDD})
	c := rszfile.NewContainer()
	c.RebuildInstanceList(inst)
	return c
}

func dataOffset(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b[32:]))
}

func TestStringPadding(t *testing.T) {
	b := encode(t, textContainer(newStore(), "abcdefg"))
	off := dataOffset(b)
	td.Cmp(t, binary.LittleEndian.Uint32(b[off:]), uint32(8))

	// Terminate the string early; the declared count still decides where
	// the next field starts.
	b[off+4+3*2] = 0
	c, _, err := rsz.Decoder{Schema: newStore()}.Decode(stream.New(b))
	if err != nil {
		t.Fatal(err)
	}
	inst := c.Instances[1]
	td.Cmp(t, inst.Get("S"), str(schema.TypeString, "abc"))
	td.Cmp(t, inst.Get("After"), rszfile.ValueUint{Tag: schema.TypeU32, Value: 0xAABBCCDD})

	// Empty strings are written without a terminator.
	b = encode(t, textContainer(newStore(), ""))
	off = dataOffset(b)
	td.Cmp(t, binary.LittleEndian.Uint32(b[off:]), uint32(0))
	td.Cmp(t, binary.LittleEndian.Uint32(b[off+4:]), uint32(0xAABBCCDD))
}

func TestArrayCount(t *testing.T) {
	store := newStore(field("V", schema.TypeS32, true))
	b := encode(t, holderContainer(store, true, 1, 2, 3))
	// The holder is the last instance; its count is the last array header.
	off := int64(len(b)) - 4*4
	td.Cmp(t, binary.LittleEndian.Uint32(b[off:]), uint32(3))

	for _, n := range []int32{-1, rsz.MaxArrayLen + 1} {
		bad := bytes.Clone(b)
		binary.LittleEndian.PutUint32(bad[off:], uint32(n))
		_, _, err := rsz.Decoder{Schema: newStore(field("V", schema.TypeS32, true))}.Decode(stream.New(bad))
		var derr rsz.DataError
		if !errors.As(err, &derr) || !errors.Is(err, rsz.ErrArrayLen) || derr.Offset != off {
			t.Errorf("count %d: unexpected error %v", n, err)
		}
	}

	_, _, err := rsz.Decoder{Schema: newStore(field("V", schema.TypeS32, true)), MaxArrayLen: 2}.Decode(stream.New(b))
	if !errors.Is(err, rsz.ErrArrayLen) {
		t.Errorf("custom bound not applied: %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	b := encode(t, textContainer(newStore(), "x"))

	_, _, err := rsz.Decoder{Schema: schema.NewStore()}.Decode(stream.New(b))
	if !errors.Is(err, rsz.ErrUnknownClass) {
		t.Errorf("expected unknown class, got %v", err)
	}

	bad := bytes.Clone(b)
	bad[0] = 'X'
	_, _, err = rsz.Decoder{Schema: newStore()}.Decode(stream.New(bad))
	if !errors.Is(err, rsz.ErrInvalidSig) {
		t.Errorf("expected invalid signature, got %v", err)
	}

	_, _, err = rsz.Decoder{Schema: newStore()}.Decode(stream.New(b[:30]))
	var derr rsz.DataError
	if !errors.As(err, &derr) {
		t.Errorf("expected data error for truncated header, got %v", err)
	}

	_, _, err = rsz.Decoder{Schema: newStore()}.Decode(stream.New(b[:len(b)-2]))
	if !errors.As(err, &derr) {
		t.Errorf("expected data error for truncated data, got %v", err)
	}
}

func TestDecodeOversizedCounts(t *testing.T) {
	header := func(objects, instances, userData int32) []byte {
		s := stream.NewWriter()
		s.WriteUint32(rsz.Magic)
		s.WriteUint32(1)
		s.WriteInt32(objects)
		s.WriteInt32(instances)
		s.WriteInt32(userData)
		s.WriteInt32(0)
		for i := 0; i < 3; i++ {
			s.WriteInt64(48)
		}
		return s.Bytes()
	}
	for _, b := range [][]byte{
		header(0, math.MaxInt32, 0),
		header(math.MaxInt32-1, math.MaxInt32, 0),
		header(0, math.MaxInt32, math.MaxInt32-1),
		header(0, 2, 1),
	} {
		for _, embedded := range []bool{false, true} {
			_, _, err := rsz.Decoder{Schema: newStore(), EmbeddedUserData: embedded}.Decode(stream.New(b))
			var derr rsz.DataError
			if !errors.As(err, &derr) || !errors.Is(err, rsz.ErrCorruptHeader) {
				t.Errorf("expected corrupt header error, got %v", err)
			}
		}
	}
}

func TestEncodeStaleIndex(t *testing.T) {
	store := newStore()
	c, root := sample(store, "a.user")
	root.Index = 0
	if _, err := (rsz.Encoder{}).Encode(c, stream.NewWriter()); !errors.Is(err, rsz.ErrStaleIndex) {
		t.Errorf("expected stale index error, got %v", err)
	}

	c, root = sample(store, "a.user")
	root.Set("Child", ref(schema.TypeObject, rszfile.NewInstance(store.ClassByName("app.Item"))))
	if _, err := (rsz.Encoder{}).Encode(c, stream.NewWriter()); !errors.Is(err, rsz.ErrStaleIndex) {
		t.Errorf("encoded reference to detached instance: %v", err)
	}

	// A reference into another container has a valid index there, but not
	// here.
	other, _ := sample(store, "b.user")
	c, root = sample(store, "a.user")
	foreign := other.Instances[1]
	if c.Instances[1] == foreign || foreign.Index != 1 {
		t.Fatalf("unexpected foreign instance %v", foreign)
	}
	root.Set("Child", ref(schema.TypeObject, foreign))
	s := stream.NewWriter()
	if _, err := (rsz.Encoder{}).Encode(c, s); !errors.Is(err, rsz.ErrStaleIndex) {
		t.Errorf("encoded reference into another container: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("wrote %d bytes before failing", s.Len())
	}

	items := root.Get("Items").(rszfile.ValueArray)
	items.Values[1] = ref(schema.TypeObject, foreign)
	root.Set("Child", ref(schema.TypeObject, c.Instances[2]))
	if _, err := (rsz.Encoder{}).Encode(c, stream.NewWriter()); !errors.Is(err, rsz.ErrStaleIndex) {
		t.Errorf("encoded array element referring into another container: %v", err)
	}
}

func TestWarnings(t *testing.T) {
	store := newStore()
	c, root := sample(store, "a.user")
	root.Set("Path", str(schema.TypeResource, `C:\textures\a.tex`))
	b := encode(t, c)

	kinds := func(warn error) map[rsz.WarningKind]int {
		m := map[rsz.WarningKind]int{}
		for _, w := range rszerrors.Collect[rsz.Warning](warn) {
			m[w.Kind]++
		}
		return m
	}

	_, warn, err := rsz.Decoder{Schema: newStore()}.Decode(stream.New(b))
	if err != nil {
		t.Fatal(err)
	}
	// The shared item is referenced by a and b, and a by Child and Items.
	td.Cmp(t, kinds(warn), map[rsz.WarningKind]int{
		rsz.WarnDuplicateRef: 2,
		rsz.WarnResourcePath: 1,
	})

	policy, err := schema.ParsePolicy([]byte(`
allowDuplicates:
  - class: app.Item
    field: Next
  - class: app.Root
    field: Items
disallowTargets:
  - app.Data
`))
	if err != nil {
		t.Fatal(err)
	}
	_, warn, err = rsz.Decoder{Schema: newStore(), Policy: policy}.Decode(stream.New(b))
	if err != nil {
		t.Fatal(err)
	}
	td.Cmp(t, kinds(warn), map[rsz.WarningKind]int{
		rsz.WarnDisallowedTarget: 1,
		rsz.WarnResourcePath:     1,
	})
}

func TestDumpRawRows(t *testing.T) {
	store := schema.NewStore(schema.NewClass("app.Blob", 0x700, 0,
		&schema.Field{Name: "Data", Type: schema.TypeData, Size: 20, Align: 4},
	))
	blob := rszfile.NewInstance(store.ClassByName("app.Blob"))
	raw := []byte("ABCDEFGHIJKLMNOP\x00\x01\x02\x03")
	blob.Set("Data", rszfile.ValueRaw{Tag: schema.TypeData, Value: raw})
	c := rszfile.NewContainer()
	c.RebuildInstanceList(blob)

	out := dump(t, c)
	for _, want := range []string{
		"Data: Data (len:20)",
		"0000: 41424344 45464748 494a4b4c 4d4e4f50  |ABCDEFGHIJKLMNOP|",
		"0010: 00010203  |....|",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump does not contain %q:\n%s", want, out)
		}
	}
}

func TestDump(t *testing.T) {
	c, _ := sample(newStore(), "data/item.user")
	out := dump(t, c)
	for _, want := range []string{
		"Objects: (count:1) {",
		"#5: app.Root (hash:00000100) {",
		`Name: String (len:13) "héllo wörld"`,
		"Child: Object -> app.Item[2]",
		`UserData: (len:14) "data/item.user"`,
		"0000: 0102 0304 0506  |......|",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump does not contain %q:\n%s", want, out)
		}
	}
}
