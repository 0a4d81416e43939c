package rszfile

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rsztools/rszfile/schema"
)

var (
	nodeClass = schema.NewClass("app.Node", 0x10, 0,
		&schema.Field{Name: "Name", Type: schema.TypeString, Size: 4, Align: 4},
		&schema.Field{Name: "Next", Type: schema.TypeObject, Size: 4, Align: 4},
		&schema.Field{Name: "Children", Type: schema.TypeObject, Array: true, Size: 4, Align: 4},
	)
	leafClass = schema.NewClass("app.Leaf", 0x20, 0,
		&schema.Field{Name: "Weight", Type: schema.TypeF32, Size: 4, Align: 4},
	)
)

func node(name string, next *Instance, children ...*Instance) *Instance {
	inst := NewInstance(nodeClass)
	inst.Set("Name", ValueString{Tag: schema.TypeString, Value: name})
	inst.Set("Next", ValueReference{Tag: schema.TypeObject, Instance: next})
	arr := ValueArray{Tag: schema.TypeObject}
	for _, c := range children {
		arr.Values = append(arr.Values, ValueReference{Tag: schema.TypeObject, Instance: c})
	}
	inst.Set("Children", arr)
	return inst
}

func name(inst *Instance) string {
	if v, ok := inst.Get("Name").(ValueString); ok {
		return v.Value
	}
	return inst.Class.Name
}

func names(list []*Instance) []string {
	s := make([]string, len(list))
	for i, inst := range list {
		if inst.IsNull() {
			s[i] = "NULL"
			continue
		}
		s[i] = name(inst)
	}
	return s
}

func checkIndices(t *testing.T, c *Container) {
	t.Helper()
	if len(c.Instances) == 0 || c.Instances[0] != Null {
		t.Fatalf("instance list does not start with Null")
	}
	for i, inst := range c.Instances {
		if inst.Index != i {
			t.Errorf("instance %s has index %d at position %d", inst, inst.Index, i)
		}
	}
}

func TestNewInstance(t *testing.T) {
	inst := NewInstance(nodeClass)
	if inst.Index != -1 {
		t.Errorf("new instance is attached (index %d)", inst.Index)
	}
	if len(inst.Values) != len(nodeClass.Fields) {
		t.Fatalf("expected %d values, got %d", len(nodeClass.Fields), len(inst.Values))
	}
	if _, ok := inst.Get("Children").(ValueArray); !ok {
		t.Errorf("array field does not hold an array")
	}
	if inst.Get("Missing") != nil {
		t.Errorf("missing field returned a value")
	}
	err := inst.Set("Missing", ValueBool(true))
	var cerr schema.ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "Missing" || !errors.Is(err, schema.ErrNoField) {
		t.Errorf("unexpected error %v", err)
	}
	if !Null.IsNull() || inst.IsNull() {
		t.Errorf("IsNull misreports")
	}
}

func TestLinksResolve(t *testing.T) {
	a := NewInstance(nodeClass)
	b := NewInstance(nodeClass)
	a.Set("Children", ValueArray{Tag: schema.TypeObject, Values: []Value{
		ValueReference{Tag: schema.TypeObject},
		ValueReference{Tag: schema.TypeObject},
	}})
	list := []*Instance{Null, a, b}

	links := Links{
		{Instance: a, Field: 1, Element: -1, Index: 2},
		{Instance: a, Field: 2, Element: 0, Index: 0},
		{Instance: a, Field: 2, Element: 1, Index: 1},
	}
	if err := links.Resolve(list); err != nil {
		t.Fatal(err)
	}
	if a.Get("Next").(ValueReference).Instance != b {
		t.Errorf("forward reference not resolved")
	}
	arr := a.Get("Children").(ValueArray)
	if arr.Values[0].(ValueReference).Instance != nil {
		t.Errorf("index 0 did not resolve to nil")
	}
	if arr.Values[1].(ValueReference).Instance != a {
		t.Errorf("self reference not resolved")
	}

	err := Links{{Instance: a, Field: 1, Element: -1, Index: 3}}.Resolve(list)
	var lerr LinkError
	if !errors.As(err, &lerr) || lerr.Len != 3 {
		t.Errorf("expected link error, got %v", err)
	}
}

// root -> {B, C}, B -> D, C -> D
func diamond() (root, b, c, d *Instance) {
	d = node("D", nil)
	b = node("B", d)
	c = node("C", d)
	root = node("root", nil, b, c)
	return
}

func TestCloneDiamond(t *testing.T) {
	root, b, c, d := diamond()
	session := NewCloneSession()
	rc := CloneCached(root, session)

	if session.Len() != 4 {
		t.Errorf("expected 4 clones, got %d", session.Len())
	}
	children := rc.Get("Children").(ValueArray).Values
	bc := children[0].(ValueReference).Instance
	cc := children[1].(ValueReference).Instance
	if bc == b || cc == c {
		t.Fatalf("children were not cloned")
	}
	db := bc.Get("Next").(ValueReference).Instance
	dc := cc.Get("Next").(ValueReference).Instance
	if db != dc {
		t.Errorf("shared referent cloned twice")
	}
	if db == d {
		t.Errorf("shared referent not cloned")
	}
	if got, ok := session.Lookup(d); !ok || got != db {
		t.Errorf("session does not map source to clone")
	}
	for _, inst := range []*Instance{rc, bc, cc, db} {
		if inst.Index != -1 {
			t.Errorf("clone %s is attached", name(inst))
		}
	}

	// Same session returns the same clone.
	if CloneCached(root, session) != rc {
		t.Errorf("session did not dedupe")
	}
	session.Clear()
	if CloneCached(root, session) == rc {
		t.Errorf("cleared session returned a stale clone")
	}
	if CloneCached(Null, session) != Null || CloneCached(nil, session) != nil {
		t.Errorf("Null or nil was cloned")
	}
}

func TestCloneCycle(t *testing.T) {
	a := node("A", nil)
	b := node("B", a)
	a.Set("Next", ValueReference{Tag: schema.TypeObject, Instance: b})

	ac := a.Clone()
	bc := ac.Get("Next").(ValueReference).Instance
	if bc == b || bc.Get("Next").(ValueReference).Instance != ac {
		t.Errorf("cycle not preserved in clone")
	}
}

func TestCloneDeepCopiesValues(t *testing.T) {
	leaf := NewInstance(leafClass)
	root := node("root", nil, leaf)
	rc := root.Clone()
	arr := rc.Get("Children").(ValueArray)
	arr.Values[0] = ValueReference{Tag: schema.TypeObject}
	if root.Get("Children").(ValueArray).Values[0].(ValueReference).Instance != leaf {
		t.Errorf("clone shares array storage with source")
	}
}

func TestRebuildInstanceList(t *testing.T) {
	root, _, _, _ := diamond()
	c := NewContainer()
	c.RebuildInstanceList(root)

	checkIndices(t, c)
	want := []string{"NULL", "D", "B", "C", "root"}
	if diff := cmp.Diff(want, names(c.Instances)); diff != "" {
		t.Errorf("instance order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{4}, c.ObjectTable); diff != "" {
		t.Errorf("object table (-want +got):\n%s", diff)
	}

	// Referents precede referrers.
	for _, inst := range c.Instances {
		inst.EachReference(func(_, _ int, ref *Instance) bool {
			if ref.Index >= inst.Index {
				t.Errorf("%s refers forward to %s", inst, ref)
			}
			return true
		})
	}
}

func TestRebuildSharedAcrossRoots(t *testing.T) {
	// Entity 2's component refers to entity 1.
	e1 := node("e1", nil)
	comp := node("comp", e1)
	e2 := node("e2", nil, comp)

	c := NewContainer()
	c.RebuildInstanceList(e1, e2)
	checkIndices(t, c)
	if diff := cmp.Diff([]string{"NULL", "e1", "comp", "e2"}, names(c.Instances)); diff != "" {
		t.Errorf("earlier root (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3}, c.ObjectTable); diff != "" {
		t.Errorf("object table (-want +got):\n%s", diff)
	}

	// When entity 1 is the later root, it is placed where it is first
	// reached, and not appended again.
	c.RebuildInstanceList(e2, e1)
	checkIndices(t, c)
	if diff := cmp.Diff([]string{"NULL", "e1", "comp", "e2"}, names(c.Instances)); diff != "" {
		t.Errorf("later root (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 1}, c.ObjectTable); diff != "" {
		t.Errorf("object table (-want +got):\n%s", diff)
	}
}

func TestRebuildUserData(t *testing.T) {
	ud := NewUserDataInstance(leafClass, UserData{Hash: leafClass.Hash, Path: "data/leaf.user"})
	root := node("root", ud)
	dropped := node("dropped", nil)

	c := NewContainer()
	c.RebuildInstanceList(root, dropped)
	c.RebuildInstanceList(root)
	checkIndices(t, c)
	if dropped.Index != -1 {
		t.Errorf("dropped instance still attached")
	}
	if len(c.UserData) != 1 || c.UserData[0].Instance != ud || c.UserData[0].Path != "data/leaf.user" {
		t.Errorf("unexpected user data table %+v", c.UserData)
	}
}

func TestAddToObjectTable(t *testing.T) {
	c := NewContainer()
	detached := NewInstance(leafClass)
	if c.AddToObjectTable(detached) {
		t.Errorf("detached instance added to object table")
	}
	root := node("root", nil)
	c.RebuildInstanceList(root)
	if c.AddToObjectTable(root) {
		t.Errorf("object added twice")
	}
	if c.AddToObjectTable(Null) {
		t.Errorf("Null added to object table")
	}
	if len(c.ObjectTable) != 1 {
		t.Errorf("unexpected object table %v", c.ObjectTable)
	}
}

func TestRootOperations(t *testing.T) {
	c := NewContainer()
	a := node("a", nil, NewInstance(leafClass))
	b := node("b", nil)
	c.AddRoot(a)
	c.AddRoot(b)
	checkIndices(t, c)
	if diff := cmp.Diff([]string{"a", "b"}, names(c.Roots())); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}

	dup := c.DuplicateRoot(a)
	checkIndices(t, c)
	if dup == a || len(c.Roots()) != 3 || len(c.Instances) != 6 {
		t.Errorf("duplicate not added: %v", names(c.Instances))
	}

	if !c.RemoveRoot(a) {
		t.Fatalf("root not removed")
	}
	if c.RemoveRoot(a) {
		t.Errorf("removed root removed again")
	}
	checkIndices(t, c)
	if a.Index != -1 || slices.Contains(c.Instances, a) {
		t.Errorf("removed root still listed")
	}

	other := NewContainer()
	shared := NewInstance(leafClass)
	x := node("x", nil, shared)
	y := node("y", nil, shared)
	other.RebuildInstanceList(x, y)

	session := NewCloneSession()
	xi := c.Import(x, session)
	yi := c.Import(y, session)
	checkIndices(t, c)
	xs := xi.Get("Children").(ValueArray).Values[0].(ValueReference).Instance
	ys := yi.Get("Children").(ValueArray).Values[0].(ValueReference).Instance
	if xs != ys || xs == shared {
		t.Errorf("import did not share referent within session")
	}
	if x.Index != 2 || shared.Index != 1 {
		t.Errorf("import modified source container")
	}
	c.RebuildTables()
	checkIndices(t, c)
}

func TestFlatten(t *testing.T) {
	root, _, _, _ := diamond()
	var got []string
	for inst := range Flatten(root, nil) {
		got = append(got, name(inst))
	}
	if diff := cmp.Diff([]string{"D", "B", "C", "root"}, got); diff != "" {
		t.Errorf("flatten (-want +got):\n%s", diff)
	}

	got = got[:0]
	for inst := range Flatten(root, func(inst *Instance) bool { return name(inst) != "B" }) {
		got = append(got, name(inst))
	}
	// D is still reachable through C.
	if diff := cmp.Diff([]string{"D", "C", "root"}, got); diff != "" {
		t.Errorf("pruned flatten (-want +got):\n%s", diff)
	}

	got = got[:0]
	for inst := range Flatten(root, func(inst *Instance) bool { return name(inst) != "root" }) {
		got = append(got, name(inst))
	}
	if len(got) != 0 {
		t.Errorf("pruned root yielded %v", got)
	}

	n := 0
	for range Flatten(root, nil) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iteration did not stop")
	}
}
