// Package rsz implements a decoder and encoder for RSZ containers.
//
// An RSZ container is a self-describing block of typed instances, found
// within scene, prefab, user, and many other file formats. The formats
// embedding a container own their own headers; this package starts at the
// RSZ signature. The easiest way to decode and encode containers is through
// ReadRsz and WriteRsz, which operate at an offset of a stream.Stream.
//
// Decoding requires a schema.Store describing the classes of the game that
// produced the container. Fields whose type the schema leaves opaque are
// resolved by a heuristic, and the result is recorded in the patch table of
// the store.
package rsz

import (
	"github.com/rsztools/rszfile/stream"
)

// Magic is the signature of an RSZ container, "RSZ\0" read as a little-endian
// uint32.
const Magic uint32 = 0x005A5352

// MaxArrayLen is the default upper bound of array counts.
const MaxArrayLen = 5000

// header is the fixed part of a container. Offsets are relative to the start
// of the container.
type header struct {
	Magic          uint32
	Version        uint32
	ObjectCount    int32
	InstanceCount  int32
	UserDataCount  int32
	Reserved       int32
	InstanceOffset int64
	DataOffset     int64
	UserDataOffset int64
}

// headerSize is the encoded size of header.
const headerSize = 48

// Offsets of the back-patched fields of header.
const (
	offInstanceOffset = 24
	offDataOffset     = 32
	offUserDataOffset = 40
)

func readHeader(s *stream.Stream) (h header, err error) {
	if h.Magic, err = s.ReadUint32(); err != nil {
		return h, err
	}
	if h.Magic != Magic {
		return h, ErrInvalidSig
	}
	if h.Version, err = s.ReadUint32(); err != nil {
		return h, err
	}
	for _, p := range []*int32{&h.ObjectCount, &h.InstanceCount, &h.UserDataCount, &h.Reserved} {
		if *p, err = s.ReadInt32(); err != nil {
			return h, err
		}
	}
	for _, p := range []*int64{&h.InstanceOffset, &h.DataOffset, &h.UserDataOffset} {
		if *p, err = s.ReadInt64(); err != nil {
			return h, err
		}
	}
	return h, nil
}

func writeHeader(s *stream.Stream, h header) error {
	if err := s.WriteUint32(h.Magic); err != nil {
		return err
	}
	if err := s.WriteUint32(h.Version); err != nil {
		return err
	}
	for _, v := range []int32{h.ObjectCount, h.InstanceCount, h.UserDataCount, h.Reserved} {
		if err := s.WriteInt32(v); err != nil {
			return err
		}
	}
	for _, v := range []int64{h.InstanceOffset, h.DataOffset, h.UserDataOffset} {
		if err := s.WriteInt64(v); err != nil {
			return err
		}
	}
	return nil
}

// Sizes of the table entries following the header.
const (
	objectEntrySize   = 4
	instanceEntrySize = 8
	pathEntrySize     = 16
	embeddedEntrySize = 24
)

// check validates the counts and offsets of h against the length of the
// data. Each table must fit between its offset and the end of the data.
// udEntry is the size of one user data entry.
func (h header) check(length, udEntry int64) error {
	if h.ObjectCount < 0 || h.InstanceCount < 1 || h.UserDataCount < 0 {
		return ErrCorruptHeader
	}
	if h.ObjectCount >= h.InstanceCount || h.UserDataCount >= h.InstanceCount {
		return ErrCorruptHeader
	}
	for _, off := range []int64{h.InstanceOffset, h.DataOffset, h.UserDataOffset} {
		if off < headerSize || off > length {
			return ErrCorruptHeader
		}
	}
	tables := []struct{ offset, size int64 }{
		{headerSize, int64(h.ObjectCount) * objectEntrySize},
		{h.InstanceOffset, int64(h.InstanceCount) * instanceEntrySize},
		{h.UserDataOffset, int64(h.UserDataCount) * udEntry},
	}
	for _, t := range tables {
		if t.size > length-t.offset {
			return ErrCorruptHeader
		}
	}
	return nil
}
