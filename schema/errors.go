package schema

import (
	"errors"
	"strings"
)

var (
	// Indicates a class name or hash not present in the schema.
	ErrNoClass = errors.New("class not found")
	// Indicates a field name not present in a class.
	ErrNoField = errors.New("field not found")
	// Indicates a type name not known by the schema model.
	ErrUnknownType = errors.New("unknown type")
	// Indicates a field whose declared size cannot hold its type.
	ErrFieldSize = errors.New("field size smaller than type")
	// Indicates a cache built from different schema sources.
	ErrStaleCache = errors.New("schema cache is stale")
	// Indicates data that is not a schema cache.
	ErrCacheSig = errors.New("invalid schema cache signature")
	// Indicates a cache payload too large to be a schema.
	ErrCacheSize = errors.New("schema cache payload too large")
)

// ConfigError indicates a problem with the schema configuration, naming the
// offending class and field.
type ConfigError struct {
	Class string
	Field string
	Cause error
}

func (err ConfigError) Error() string {
	var s strings.Builder
	s.WriteString("schema")
	if err.Class != "" {
		s.WriteString(" ")
		s.WriteString(err.Class)
		if err.Field != "" {
			s.WriteString(".")
			s.WriteString(err.Field)
		}
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err ConfigError) Unwrap() error {
	return err.Cause
}
