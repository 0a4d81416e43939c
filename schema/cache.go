package schema

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/anaminus/parse"
	"github.com/bkaradzic/go-lz4"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

// cacheSig is the signature of a compiled schema cache.
const cacheSig = "RSZC"

// cacheVersion is incremented when the layout of the cache payload changes.
const cacheVersion = 2

// maxCacheSize bounds the compressed and decompressed sizes of a cache
// payload.
const maxCacheSize = 1 << 28

type cacheField struct {
	Name         string `msgpack:"n"`
	Type         string `msgpack:"t"`
	Inferred     string `msgpack:"i,omitempty"`
	Array        bool   `msgpack:"a,omitempty"`
	Size         int    `msgpack:"s"`
	Align        int    `msgpack:"l"`
	Native       bool   `msgpack:"v,omitempty"`
	OriginalType string `msgpack:"o,omitempty"`
}

type cacheClass struct {
	Name   string       `msgpack:"n"`
	Hash   uint32       `msgpack:"h"`
	CRC    uint32       `msgpack:"c"`
	Fields []cacheField `msgpack:"f"`
}

type cachePatch struct {
	Name   string `msgpack:"n"`
	Type   string `msgpack:"t,omitempty"`
	Rename string `msgpack:"r,omitempty"`
}

// cachePayload holds the classes of a store along with the patch table that
// was applied to them, so that a store read from the cache keeps collecting
// patches where the original left off.
type cachePayload struct {
	Classes []cacheClass            `msgpack:"c"`
	Patches map[string][]cachePatch `msgpack:"p,omitempty"`
}

// Fingerprint returns a digest identifying the sources a store was built
// from, typically the schema dump followed by the patch file and overlays.
func Fingerprint(sources ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	for _, src := range sources {
		binary.LittleEndian.PutUint64(n[:], uint64(len(src)))
		h.Write(n[:])
		h.Write(src)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// WriteCache writes a compiled form of s to w. The cache is keyed by
// fingerprint, which ReadCache compares before decoding.
func WriteCache(w io.Writer, s *Store, fingerprint [32]byte) (n int64, err error) {
	classes := s.Classes()
	list := make([]cacheClass, len(classes))
	for i, c := range classes {
		cc := cacheClass{Name: c.Name, Hash: c.Hash, CRC: c.CRC, Fields: make([]cacheField, len(c.Fields))}
		for j, f := range c.Fields {
			cf := cacheField{
				Name:         f.Name,
				Type:         f.Type.String(),
				Array:        f.Array,
				Size:         f.Size,
				Align:        f.Align,
				Native:       f.Native,
				OriginalType: f.OriginalType,
			}
			if f.Inferred != TypeInvalid {
				cf.Inferred = f.Inferred.String()
			}
			cc.Fields[j] = cf
		}
		list[i] = cc
	}

	var patches map[string][]cachePatch
	if s.Patches != nil && s.Patches.Len() > 0 {
		patches = make(map[string][]cachePatch, s.Patches.Len())
		for class, list := range s.Patches.classes {
			cp := make([]cachePatch, len(list))
			for i, p := range list {
				cp[i] = cachePatch{Name: p.Name, Type: p.Type, Rename: p.Rename}
			}
			patches[class] = cp
		}
	}

	payload, err := msgpack.Marshal(cachePayload{Classes: list, Patches: patches})
	if err != nil {
		return 0, fmt.Errorf("encode schema cache: %w", err)
	}
	compressed, err := lz4.Encode(nil, payload)
	if err != nil {
		return 0, fmt.Errorf("compress schema cache: %w", err)
	}

	fw := parse.NewBinaryWriter(w)
	if fw.Bytes([]byte(cacheSig)) {
		return fw.End()
	}
	if fw.Number(uint32(cacheVersion)) {
		return fw.End()
	}
	if fw.Bytes(fingerprint[:]) {
		return fw.End()
	}
	if fw.Number(uint32(len(compressed))) {
		return fw.End()
	}
	fw.Bytes(compressed)
	return fw.End()
}

// ReadCache reads a store written by WriteCache. Returns ErrStaleCache if
// the cache was written with a different fingerprint or cache version.
func ReadCache(r io.Reader, fingerprint [32]byte) (*Store, error) {
	fr := parse.NewBinaryReader(r)

	var sig [4]byte
	if fr.Bytes(sig[:]) {
		return nil, fr.Err()
	}
	if string(sig[:]) != cacheSig {
		return nil, ErrCacheSig
	}
	var version uint32
	if fr.Number(&version) {
		return nil, fr.Err()
	}
	var sum [32]byte
	if fr.Bytes(sum[:]) {
		return nil, fr.Err()
	}
	if version != cacheVersion || sum != fingerprint {
		return nil, ErrStaleCache
	}
	var length uint32
	if fr.Number(&length) {
		return nil, fr.Err()
	}
	if length < 4 || length > maxCacheSize {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrCacheSize, length)
	}
	compressed, err := io.ReadAll(io.LimitReader(r, int64(length)))
	if err != nil {
		return nil, err
	}
	if len(compressed) != int(length) {
		return nil, io.ErrUnexpectedEOF
	}
	if n := binary.LittleEndian.Uint32(compressed); n > maxCacheSize {
		return nil, fmt.Errorf("%w: decompressed payload of %d bytes", ErrCacheSize, n)
	}

	raw, err := lz4.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	var payload cachePayload
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode schema cache: %w", err)
	}

	s := NewStore()
	for class, list := range payload.Patches {
		for _, p := range list {
			s.Patches.Record(class, FieldPatch{Name: p.Name, Type: p.Type, Rename: p.Rename})
		}
	}
	s.Patches.dirty = false
	for _, cc := range payload.Classes {
		fields := make([]*Field, len(cc.Fields))
		for i, cf := range cc.Fields {
			typ := ParseType(cf.Type)
			if typ == TypeInvalid {
				return nil, ConfigError{Class: cc.Name, Field: cf.Name, Cause: fmt.Errorf("%w %q", ErrUnknownType, cf.Type)}
			}
			f := &Field{
				Name:         cf.Name,
				Type:         typ,
				Array:        cf.Array,
				Size:         cf.Size,
				Align:        cf.Align,
				Native:       cf.Native,
				OriginalType: cf.OriginalType,
			}
			if cf.Inferred != "" {
				f.Inferred = ParseType(cf.Inferred)
			}
			fields[i] = f
		}
		s.Add(NewClass(cc.Name, cc.Hash, cc.CRC, fields...))
	}
	return s, nil
}
