package rsz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// Indicates an unexpected container signature.
	ErrInvalidSig = errors.New("invalid signature")
	// Indicates an array count that is negative or too large.
	ErrArrayLen = errors.New("invalid array length")
	// Indicates an instance whose class hash is not in the schema.
	ErrUnknownClass = errors.New("unknown class")
	// Indicates header counts or offsets that do not fit the data.
	ErrCorruptHeader = errors.New("the container header is corrupted")
	// Indicates a user data entry whose instance is out of range.
	ErrUserDataIndex = errors.New("user data refers to an invalid instance")
	// Indicates a value whose Go type does not match the type of its field.
	ErrValueType = errors.New("value does not match field type")
)

// DataError wraps an error that occurred while decoding or encoding the data
// of a container.
type DataError struct {
	// Offset is the byte offset, relative to the start of the container,
	// where the error occurred. Negative if unknown.
	Offset int64

	Cause error
}

func (err DataError) Error() string {
	var s strings.Builder
	s.WriteString("data error")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err DataError) Unwrap() error {
	return err.Cause
}

// FieldError locates an error within a field of an instance.
type FieldError struct {
	Class string
	Field string
	// Index is the index of the instance.
	Index int
	// Element is the array element, or -1.
	Element int

	Cause error
}

func (err FieldError) Error() string {
	var s strings.Builder
	fmt.Fprintf(&s, "%s[%d].%s", err.Class, err.Index, err.Field)
	if err.Element >= 0 {
		fmt.Fprintf(&s, "[%d]", err.Element)
	}
	s.WriteString(": ")
	s.WriteString(err.Cause.Error())
	return s.String()
}

func (err FieldError) Unwrap() error {
	return err.Cause
}

// InvariantError indicates data that contradicts what was established
// earlier in the same container, such as an array whose first element was
// inferred to be a reference followed by elements that cannot be one.
type InvariantError struct {
	Class   string
	Field   string
	Element int
	// Value is the raw value that caused the contradiction.
	Value uint32
}

func (err InvariantError) Error() string {
	return fmt.Sprintf("%s.%s[%d]: value %d contradicts the inferred reference type", err.Class, err.Field, err.Element, err.Value)
}

// ContainerError wraps an error that occurred within a container embedded in
// another container.
type ContainerError struct {
	// Instance is the index of the user data instance in the parent.
	Instance int
	// Offset is the offset of the embedded container within the parent.
	Offset int64

	Cause error
}

func (err ContainerError) Error() string {
	return fmt.Sprintf("embedded container of instance %d at %d: %s", err.Instance, err.Offset, err.Cause)
}

func (err ContainerError) Unwrap() error {
	return err.Cause
}

// WarningKind classifies the anomalies reported by Warning.
type WarningKind uint8

const (
	// A reference to an instance already referenced elsewhere.
	WarnDuplicateRef WarningKind = iota + 1
	// A reference to an instance of a class that should not be referenced
	// directly.
	WarnDisallowedTarget
	// A resource path that does not look like a path.
	WarnResourcePath
	// Non-zero bytes in reserved space.
	WarnReserved
)

func (k WarningKind) String() string {
	switch k {
	case WarnDuplicateRef:
		return "duplicate reference"
	case WarnDisallowedTarget:
		return "disallowed target"
	case WarnResourcePath:
		return "suspicious resource path"
	case WarnReserved:
		return "reserved space is non-zero"
	}
	return "warning"
}

// Warning reports data that is well formed but unusual. Warnings do not stop
// decoding.
type Warning struct {
	Kind WarningKind
	// Index is the index of the instance holding the data, or -1.
	Index int
	Class string
	Field string
	Msg   string
}

func (w Warning) Error() string {
	var s strings.Builder
	s.WriteString(w.Kind.String())
	if w.Class != "" {
		fmt.Fprintf(&s, " in %s[%d]", w.Class, w.Index)
		if w.Field != "" {
			s.WriteByte('.')
			s.WriteString(w.Field)
		}
	}
	if w.Msg != "" {
		s.WriteString(": ")
		s.WriteString(w.Msg)
	}
	return s.String()
}
