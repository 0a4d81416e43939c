package stream

import "fmt"

// Slot is a fixed-width location in a stream whose value is written after
// the data it depends on is known.
type Slot struct {
	s    *Stream
	at   int64
	size int
}

// Reserve writes size zero bytes at the cursor and returns a Slot
// referring to them. size must be 4 or 8.
func (s *Stream) Reserve(size int) (Slot, error) {
	if size != 4 && size != 8 {
		return Slot{}, fmt.Errorf("unsupported slot size %d", size)
	}
	slot := Slot{s: s, at: s.Pos(), size: size}
	return slot, s.WriteBytes(make([]byte, size))
}

// SlotAt returns a Slot at pos without writing anything.
func (s *Stream) SlotAt(pos int64, size int) Slot {
	return Slot{s: s, at: pos, size: size}
}

// Pos returns the position of the slot relative to the origin of its stream.
func (slot Slot) Pos() int64 {
	return slot.at
}

// Set writes v into the slot. The cursor of the stream is left unchanged.
func (slot Slot) Set(v int64) error {
	if slot.s == nil {
		return fmt.Errorf("unset slot")
	}
	pos := slot.s.Pos()
	defer slot.s.Seek(pos)
	if err := slot.s.Seek(slot.at); err != nil {
		return err
	}
	if slot.size == 4 {
		return slot.s.WriteUint32(uint32(v))
	}
	return slot.s.WriteInt64(v)
}

type stringEntry struct {
	slot  Slot
	value string
}

// StringTable collects strings whose offsets are written into slots once the
// table is flushed.
type StringTable struct {
	entries []stringEntry
}

// Add schedules v to be written when the table is flushed, and its offset to
// be written into slot.
func (t *StringTable) Add(slot Slot, v string) {
	t.entries = append(t.entries, stringEntry{slot: slot, value: v})
}

// Len returns the number of pending entries.
func (t *StringTable) Len() int {
	return len(t.entries)
}

// Flush writes each pending string to s as NUL-terminated UTF-16 at the
// cursor, sets the slots to the offsets of the strings relative to the origin
// of s, then empties the table. Identical strings are written once.
func (t *StringTable) Flush(s *Stream) error {
	written := make(map[string]int64, len(t.entries))
	for _, e := range t.entries {
		off, ok := written[e.value]
		if !ok {
			off = s.Pos()
			if _, err := s.WriteUTF16(e.value); err != nil {
				return err
			}
			written[e.value] = off
		}
		if err := e.slot.Set(off); err != nil {
			return err
		}
	}
	t.entries = t.entries[:0]
	return nil
}
