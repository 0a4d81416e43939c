package rszfile

import (
	"fmt"
)

// Link specifies a reference value of an instance that holds a raw index,
// which is to be resolved into its referent once every instance of the
// container exists.
type Link struct {
	Instance *Instance
	// Field is the index of the field within the class of Instance.
	Field int
	// Element is the index within an array field, or -1.
	Element int
	// Index is the raw index of the referent in the instance list.
	Index int32
}

// LinkError is returned when a link refers to an index outside of the
// instance list.
type LinkError struct {
	Link Link
	Len  int
}

func (err LinkError) Error() string {
	elem := ""
	if err.Link.Element >= 0 {
		elem = fmt.Sprintf("[%d]", err.Link.Element)
	}
	field := fmt.Sprintf("#%d", err.Link.Field)
	if inst := err.Link.Instance; inst != nil && err.Link.Field < len(inst.Class.Fields) {
		field = inst.Class.Fields[err.Link.Field].Name
	}
	return fmt.Sprintf("%s.%s%s: reference %d out of range [0, %d)", err.Link.Instance, field, elem, err.Link.Index, err.Len)
}

// Links is a list of deferred references.
type Links []Link

// Resolve sets the value of each link to the instance at its index in list.
// Index 0 resolves to a nil reference. Forward references are allowed.
// Returns a LinkError for the first link out of range; links before it have
// already been resolved.
func (links Links) Resolve(list []*Instance) error {
	for _, link := range links {
		if link.Index < 0 || int(link.Index) >= len(list) {
			return LinkError{Link: link, Len: len(list)}
		}
		var ref *Instance
		if link.Index > 0 {
			ref = list[link.Index]
		}
		link.Instance.SetReference(link.Field, link.Element, ref)
	}
	return nil
}
