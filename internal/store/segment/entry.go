// Package segment implements the on-disk files of the store: append-only
// data files holding encoded records, index files of fixed 16-byte
// (id, offset) entries, and the sort pass that turns an append-order index
// into the ascending index the lookup path binary-searches.
package segment

import (
	"encoding/binary"
)

// EntrySize is the on-disk size of one index entry: id u64 LE, offset i64 LE.
const EntrySize = 16

// Entry locates one record: Offset is the byte position of the record's
// encoding in the paired data file.
type Entry struct {
	ID     uint64
	Offset int64
}

// PutEntry encodes e into b, which must be at least EntrySize bytes.
func PutEntry(b []byte, e Entry) {
	binary.LittleEndian.PutUint64(b[0:8], e.ID)
	binary.LittleEndian.PutUint64(b[8:16], uint64(e.Offset))
}

// ReadEntry decodes the entry at the start of b.
func ReadEntry(b []byte) Entry {
	return Entry{
		ID:     binary.LittleEndian.Uint64(b[0:8]),
		Offset: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// EntryID decodes only the id of the entry at slot i of a packed index.
func EntryID(index []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(index[i*EntrySize:])
}
