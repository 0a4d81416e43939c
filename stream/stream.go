// Package stream implements a positioned little-endian byte stream over an
// in-memory buffer.
//
// A Stream can be read from and written to at any position. Seeking past the
// end of the buffer is allowed; a subsequent write fills the gap with zeros,
// while a subsequent read fails. Windows created with Window share the buffer
// of their parent, but measure positions relative to their own origin, which
// is how containers embedded within other containers are addressed.
package stream

import (
	"errors"
	"io"
	"math"
	"unicode/utf16"

	"github.com/anaminus/parse"
)

// ErrNegativeSeek indicates an attempt to move the cursor before the origin
// of a stream.
var ErrNegativeSeek = errors.New("seek to negative position")

type buffer struct {
	b []byte
}

// Stream is a positioned byte stream. Positions are relative to the origin of
// the stream.
type Stream struct {
	buf  *buffer
	base int64
	pos  int64

	fr *parse.BinaryReader
	fw *parse.BinaryWriter
}

// New returns a stream reading from and writing to b. The stream takes
// ownership of b.
func New(b []byte) *Stream {
	s := &Stream{buf: &buffer{b: b}}
	s.init()
	return s
}

// NewWriter returns an empty stream ready for writing.
func NewWriter() *Stream {
	return New(make([]byte, 0, 4096))
}

func (s *Stream) init() {
	s.fr = parse.NewBinaryReader(cursor{s})
	s.fw = parse.NewBinaryWriter(cursor{s})
}

// Window returns a stream sharing the buffer of s, whose origin is at offset
// relative to the origin of s. The cursor of the window starts at its origin.
func (s *Stream) Window(offset int64) *Stream {
	w := &Stream{buf: s.buf, base: s.base + offset}
	w.pos = w.base
	w.init()
	return w
}

// Base returns the absolute offset of the origin of the stream within the
// underlying buffer.
func (s *Stream) Base() int64 {
	return s.base
}

// Pos returns the position of the cursor.
func (s *Stream) Pos() int64 {
	return s.pos - s.base
}

// Len returns the number of bytes between the origin and the end of the
// buffer.
func (s *Stream) Len() int64 {
	return int64(len(s.buf.b)) - s.base
}

// Bytes returns the content of the buffer from the origin of the stream.
func (s *Stream) Bytes() []byte {
	if s.base >= int64(len(s.buf.b)) {
		return nil
	}
	return s.buf.b[s.base:]
}

// Seek moves the cursor to pos.
func (s *Stream) Seek(pos int64) error {
	if pos < 0 {
		return ErrNegativeSeek
	}
	s.pos = s.base + pos
	return nil
}

// Skip moves the cursor forward by n bytes.
func (s *Stream) Skip(n int64) error {
	return s.Seek(s.Pos() + n)
}

// Align moves the cursor forward to the next multiple of n. Alignment is
// relative to the origin of the stream.
func (s *Stream) Align(n int64) {
	if n <= 1 {
		return
	}
	if r := s.Pos() % n; r != 0 {
		s.pos += n - r
	}
}

// Pad writes zeros until the cursor is aligned to n. Unlike Align, the buffer
// is extended even when nothing is written afterwards.
func (s *Stream) Pad(n int64) error {
	if n <= 1 {
		return nil
	}
	if r := s.Pos() % n; r != 0 {
		return s.WriteBytes(make([]byte, n-r))
	}
	return nil
}

// Err returns the first error that occurred while reading or writing.
func (s *Stream) Err() error {
	if err := s.fr.Err(); err != nil {
		return err
	}
	return s.fw.Err()
}

// cursor adapts a Stream to io.Reader and io.Writer at the current position.
type cursor struct {
	s *Stream
}

func (c cursor) Read(p []byte) (n int, err error) {
	b := c.s.buf.b
	if c.s.pos >= int64(len(b)) {
		return 0, io.EOF
	}
	n = copy(p, b[c.s.pos:])
	c.s.pos += int64(n)
	return n, nil
}

func (c cursor) Write(p []byte) (n int, err error) {
	end := c.s.pos + int64(len(p))
	if end > int64(len(c.s.buf.b)) {
		if end > int64(cap(c.s.buf.b)) {
			grown := make([]byte, end, 2*end)
			copy(grown, c.s.buf.b)
			c.s.buf.b = grown
		} else {
			old := len(c.s.buf.b)
			c.s.buf.b = c.s.buf.b[:end]
			for i := old; i < int(c.s.pos); i++ {
				c.s.buf.b[i] = 0
			}
		}
	}
	copy(c.s.buf.b[c.s.pos:], p)
	c.s.pos = end
	return len(p), nil
}

func (s *Stream) number(v interface{}) error {
	if s.fr.Number(v) {
		return s.fr.Err()
	}
	return nil
}

func (s *Stream) putNumber(v interface{}) error {
	if s.fw.Number(v) {
		return s.fw.Err()
	}
	return nil
}

// ReadBytes reads exactly n bytes.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("negative byte count")
	}
	p := make([]byte, n)
	if s.fr.Bytes(p) {
		return nil, s.fr.Err()
	}
	return p, nil
}

// WriteBytes writes p at the cursor.
func (s *Stream) WriteBytes(p []byte) error {
	if s.fw.Bytes(p) {
		return s.fw.Err()
	}
	return nil
}

func (s *Stream) ReadUint8() (v uint8, err error)   { err = s.number(&v); return v, err }
func (s *Stream) ReadInt8() (v int8, err error)     { err = s.number(&v); return v, err }
func (s *Stream) ReadUint16() (v uint16, err error) { err = s.number(&v); return v, err }
func (s *Stream) ReadInt16() (v int16, err error)   { err = s.number(&v); return v, err }
func (s *Stream) ReadUint32() (v uint32, err error) { err = s.number(&v); return v, err }
func (s *Stream) ReadInt32() (v int32, err error)   { err = s.number(&v); return v, err }
func (s *Stream) ReadUint64() (v uint64, err error) { err = s.number(&v); return v, err }
func (s *Stream) ReadInt64() (v int64, err error)   { err = s.number(&v); return v, err }

func (s *Stream) ReadFloat32() (float32, error) {
	v, err := s.ReadUint32()
	return math.Float32frombits(v), err
}

func (s *Stream) ReadFloat64() (float64, error) {
	v, err := s.ReadUint64()
	return math.Float64frombits(v), err
}

func (s *Stream) WriteUint8(v uint8) error   { return s.putNumber(v) }
func (s *Stream) WriteInt8(v int8) error     { return s.putNumber(v) }
func (s *Stream) WriteUint16(v uint16) error { return s.putNumber(v) }
func (s *Stream) WriteInt16(v int16) error   { return s.putNumber(v) }
func (s *Stream) WriteUint32(v uint32) error { return s.putNumber(v) }
func (s *Stream) WriteInt32(v int32) error   { return s.putNumber(v) }
func (s *Stream) WriteUint64(v uint64) error { return s.putNumber(v) }
func (s *Stream) WriteInt64(v int64) error   { return s.putNumber(v) }

func (s *Stream) WriteFloat32(v float32) error {
	return s.WriteUint32(math.Float32bits(v))
}

func (s *Stream) WriteFloat64(v float64) error {
	return s.WriteUint64(math.Float64bits(v))
}

// ReadUTF16 reads n UTF-16 code units and returns them decoded. Decoding
// stops at the first NUL unit, but all n units are consumed.
func (s *Stream) ReadUTF16(n int) (string, error) {
	raw, err := s.ReadBytes(n * 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		u := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// WriteUTF16 writes v as UTF-16 code units followed by a NUL unit. Returns
// the number of units written, including the terminator.
func (s *Stream) WriteUTF16(v string) (int, error) {
	units := append(utf16.Encode([]rune(v)), 0)
	raw := make([]byte, len(units)*2)
	for i, u := range units {
		raw[2*i] = byte(u)
		raw[2*i+1] = byte(u >> 8)
	}
	return len(units), s.WriteBytes(raw)
}

// UTF16Len returns the number of UTF-16 units needed to encode v, excluding
// any terminator.
func UTF16Len(v string) int {
	return len(utf16.Encode([]rune(v)))
}

// ReadUTF16Z reads UTF-16 code units up to and including a NUL unit, and
// returns them decoded without the terminator.
func (s *Stream) ReadUTF16Z() (string, error) {
	var units []uint16
	for {
		u, err := s.ReadUint16()
		if err != nil {
			return "", err
		}
		if u == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, u)
	}
}
