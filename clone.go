package rszfile

// CloneSession maps source instances to their clones for the duration of a
// bulk clone or import. Start a session before the operation and clear it
// after; a stale session returns clones from an earlier operation.
type CloneSession struct {
	clones map[*Instance]*Instance
}

// NewCloneSession returns an empty session.
func NewCloneSession() *CloneSession {
	return &CloneSession{clones: map[*Instance]*Instance{}}
}

// Clear forgets every clone recorded in the session.
func (s *CloneSession) Clear() {
	clear(s.clones)
}

// Len returns the number of clones recorded in the session.
func (s *CloneSession) Len() int {
	return len(s.clones)
}

// Lookup returns the clone of src, if one was made in this session.
func (s *CloneSession) Lookup(src *Instance) (*Instance, bool) {
	c, ok := s.clones[src]
	return c, ok
}

// Clone returns a deep copy of inst in a fresh session.
func (inst *Instance) Clone() *Instance {
	return CloneCached(inst, NewCloneSession())
}

// CloneCached returns a deep copy of inst and every instance reachable from
// it. An instance already cloned in session is returned as is, so shared
// referents remain shared in the copy. Clones are detached, with an Index of
// -1. nil and Null are returned unchanged. A nil session behaves as a fresh
// one.
func CloneCached(inst *Instance, session *CloneSession) *Instance {
	if inst == nil || inst.IsNull() {
		return inst
	}
	if session == nil {
		session = NewCloneSession()
	}
	if c, ok := session.clones[inst]; ok {
		return c
	}

	c := &Instance{
		Class: inst.Class,
		Index: -1,
	}
	session.clones[inst] = c

	if inst.UserData != nil {
		ud := *inst.UserData
		ud.Instance = c
		c.UserData = &ud
	}
	if inst.Values != nil {
		c.Values = make([]Value, len(inst.Values))
		for i, v := range inst.Values {
			if v != nil {
				c.Values[i] = v.Copy()
			}
		}
		c.EachReference(func(field, elem int, ref *Instance) bool {
			c.SetReference(field, elem, CloneCached(ref, session))
			return true
		})
	}
	return c
}
