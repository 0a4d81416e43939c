package rszfile

import (
	"iter"
	"slices"
)

// Flatten returns an iterator over inst and every instance reachable from
// it through reference fields, in post-order: referents are yielded before
// the instance that refers to them, and inst is yielded last. Each instance
// is yielded once. If pred is not nil, instances for which pred returns
// false are skipped together with everything reachable only through them.
// nil and Null are never yielded.
func Flatten(inst *Instance, pred func(*Instance) bool) iter.Seq[*Instance] {
	return func(yield func(*Instance) bool) {
		seen := map[*Instance]bool{}
		walkPost(inst, seen, pred, yield)
	}
}

// walkPost visits inst in post-order. Returns false if iteration was
// stopped.
func walkPost(inst *Instance, seen map[*Instance]bool, pred func(*Instance) bool, yield func(*Instance) bool) bool {
	if inst == nil || inst.IsNull() || seen[inst] {
		return true
	}
	seen[inst] = true
	if pred != nil && !pred(inst) {
		return true
	}
	ok := true
	inst.EachReference(func(_, _ int, ref *Instance) bool {
		ok = walkPost(ref, seen, pred, yield)
		return ok
	})
	if !ok {
		return false
	}
	return yield(inst)
}

// RebuildInstanceList replaces the instance list of the container with the
// instances reachable from roots. The list starts with Null, followed by
// the instances of each root in post-order, so that referents precede the
// instances referring to them. An instance reachable from several roots is
// placed where it is first reached. The Index of each listed instance is set
// to its position, and instances dropped from the list are detached.
//
// The object table is regenerated with the indices of roots, and the user
// data table with the listed user data stand-ins, in index order.
func (c *Container) RebuildInstanceList(roots ...*Instance) {
	old := c.Instances
	list := []*Instance{Null}
	seen := map[*Instance]bool{}
	for _, root := range roots {
		walkPost(root, seen, nil, func(inst *Instance) bool {
			inst.Index = len(list)
			list = append(list, inst)
			return true
		})
	}
	for _, inst := range old {
		if inst != nil && !inst.IsNull() && !seen[inst] {
			inst.Index = -1
		}
	}
	c.Instances = list

	c.ObjectTable = c.ObjectTable[:0]
	for _, root := range roots {
		c.AddToObjectTable(root)
	}

	c.UserData = c.UserData[:0]
	for _, inst := range list {
		if inst.UserData != nil {
			inst.UserData.Instance = inst
			c.UserData = append(c.UserData, inst.UserData)
		}
	}
}

// AddToObjectTable appends the index of inst to the object table. Returns
// false if inst is detached, null, or already present.
func (c *Container) AddToObjectTable(inst *Instance) bool {
	if inst == nil || inst.IsNull() || inst.Index == -1 {
		return false
	}
	if slices.Contains(c.ObjectTable, inst.Index) {
		return false
	}
	c.ObjectTable = append(c.ObjectTable, inst.Index)
	return true
}

// Roots returns the objects of the container. It is equivalent to Objects.
func (c *Container) Roots() []*Instance {
	return c.Objects()
}

// RebuildTables rebuilds the instance list from the current objects.
func (c *Container) RebuildTables() {
	c.RebuildInstanceList(c.Roots()...)
}

// AddRoot adds inst and everything reachable from it to the container as a
// new object, then rebuilds the instance list.
func (c *Container) AddRoot(inst *Instance) {
	if inst == nil || inst.IsNull() {
		return
	}
	roots := c.Roots()
	if !slices.Contains(roots, inst) {
		roots = append(roots, inst)
	}
	c.RebuildInstanceList(roots...)
}

// RemoveRoot removes inst from the objects of the container, then rebuilds
// the instance list. Instances that were reachable only from inst are
// dropped. Returns false if inst is not an object of the container.
func (c *Container) RemoveRoot(inst *Instance) bool {
	roots := c.Roots()
	i := slices.Index(roots, inst)
	if i < 0 {
		return false
	}
	c.RebuildInstanceList(slices.Delete(roots, i, i+1)...)
	return true
}

// DuplicateRoot adds a deep copy of inst as a new object of the container and
// returns the copy.
func (c *Container) DuplicateRoot(inst *Instance) *Instance {
	session := NewCloneSession()
	dup := CloneCached(inst, session)
	c.AddRoot(dup)
	return dup
}

// Import adds a copy of src, typically an object of another container, as a
// new object of the container and returns the copy. Instances reachable from
// src are copied through session, so that importing several objects that
// share referents within one session keeps them shared.
func (c *Container) Import(src *Instance, session *CloneSession) *Instance {
	dup := CloneCached(src, session)
	c.AddRoot(dup)
	return dup
}
