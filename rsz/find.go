package rsz

import (
	"bytes"
	"encoding/binary"

	"github.com/rsztools/rszfile/stream"
)

// Find returns the offsets of the containers found in data, in increasing
// order. A match requires the signature followed by a header whose counts
// and offsets fit the remaining data. Containers nested within a match are
// also reported.
func Find(data []byte) []int64 {
	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], Magic)

	var found []int64
	for off := 0; off+headerSize <= len(data); {
		i := bytes.Index(data[off:], sig[:])
		if i < 0 {
			break
		}
		at := off + i
		s := stream.New(data[at:])
		if h, err := readHeader(s); err == nil && h.check(s.Len(), pathEntrySize) == nil {
			found = append(found, int64(at))
		}
		off = at + 1
	}
	return found
}
