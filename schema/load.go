package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch"
)

type jsonField struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int    `json:"size"`
	Align        int    `json:"align"`
	Array        bool   `json:"array"`
	Native       bool   `json:"native"`
	OriginalType string `json:"original_type"`
}

type jsonClass struct {
	Name   string      `json:"name"`
	CRC    string      `json:"crc"`
	Fields []jsonField `json:"fields"`
}

type loadConfig struct {
	patches  *PatchTable
	overlays [][]byte
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

// WithPatches applies a patch table after the classes are parsed. The table
// also becomes the Patches of the store, so later inferences are added to it.
func WithPatches(t *PatchTable) LoadOption {
	return func(c *loadConfig) {
		c.patches = t
	}
}

// WithOverlay applies a JSON merge patch (RFC 7386) to the schema document
// before it is parsed. Overlays are applied in the order given.
func WithOverlay(patch []byte) LoadOption {
	return func(c *loadConfig) {
		c.overlays = append(c.overlays, patch)
	}
}

// Load reads a schema dump from r. The dump is a JSON object mapping the hex
// hash of each class to its name, CRC and ordered field list. Members whose
// key is not a hex number are ignored.
func Load(r io.Reader, opts ...LoadOption) (*Store, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b, opts...)
}

// LoadFile reads a schema dump from the file at path.
func LoadFile(path string, opts ...LoadOption) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b, opts...)
}

// Parse decodes a schema dump held in b.
func Parse(b []byte, opts ...LoadOption) (*Store, error) {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	for i, overlay := range cfg.overlays {
		patched, err := jsonpatch.MergePatch(b, overlay)
		if err != nil {
			return nil, fmt.Errorf("apply overlay %d: %w", i, err)
		}
		b = patched
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	s := NewStore()
	for key, raw := range doc {
		hash, err := strconv.ParseUint(key, 16, 32)
		if err != nil || hash == 0 {
			continue
		}
		var jc jsonClass
		if err := json.Unmarshal(raw, &jc); err != nil {
			return nil, ConfigError{Class: key, Cause: err}
		}
		c, err := buildClass(uint32(hash), jc)
		if err != nil {
			return nil, err
		}
		s.Add(c)
	}

	if cfg.patches != nil {
		if err := cfg.patches.Apply(s); err != nil {
			return nil, err
		}
		s.Patches = cfg.patches
	}
	return s, nil
}

func buildClass(hash uint32, jc jsonClass) (*Class, error) {
	var crc uint64
	if jc.CRC != "" {
		var err error
		if crc, err = strconv.ParseUint(jc.CRC, 16, 32); err != nil {
			return nil, ConfigError{Class: jc.Name, Cause: fmt.Errorf("crc: %w", err)}
		}
	}
	fields := make([]*Field, len(jc.Fields))
	for i, jf := range jc.Fields {
		typ := ParseType(jf.Type)
		if typ == TypeInvalid {
			return nil, ConfigError{Class: jc.Name, Field: jf.Name, Cause: fmt.Errorf("%w %q", ErrUnknownType, jf.Type)}
		}
		f := &Field{
			Name:         jf.Name,
			Type:         typ,
			Array:        jf.Array,
			Size:         jf.Size,
			Align:        jf.Align,
			Native:       jf.Native,
			OriginalType: jf.OriginalType,
		}
		if f.Size == 0 {
			f.Size = typ.Size()
		}
		if f.Align == 0 {
			f.Align = typ.Align()
		}
		if p := typ.Payload(f.Size); f.Size < p {
			return nil, ConfigError{Class: jc.Name, Field: jf.Name, Cause: fmt.Errorf("%w: %d < %d (%s)", ErrFieldSize, f.Size, p, typ)}
		}
		fields[i] = f
	}
	return NewClass(jc.Name, hash, uint32(crc), fields...), nil
}
