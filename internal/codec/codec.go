// Package codec implements the binary record layouts of the four entity
// kinds. Every layout starts with the record's u64 id, uses little-endian
// fixed-width integers, and prefixes strings and lists with their length.
//
// Layouts:
//
//	author:  id u64 | nameLen u32 | name
//	venue:   id u64 | nameLen u16 | name
//	concept: id u64 | level u16 | nameLen u16 | numAncestors u16 | name | ancestor u64 ...
//	work:    id u64 | venueId u64 | year u16 | titleLen u16 | numConcepts u16 |
//	         numReferences u16 | numAuthorships u16 | title |
//	         (conceptId u64, score f64) ... | referenceId u64 ... |
//	         (authorId u64, position u16) ...
//
// Lists longer than MaxListLen and strings longer than their length field
// are rejected with errors.ErrCapacity rather than truncated.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

const (
	MaxListLen  = math.MaxUint16
	MaxShortStr = math.MaxUint16
	MaxLongStr  = math.MaxUint32
)

// Codec encodes and decodes one entity kind. Decode must be given the id the
// caller expects at the read position; a different leading id is reported as
// errors.ErrIntegrity.
type Codec[T any] interface {
	Kind() entity.Kind
	ID(rec T) uint64
	Append(dst []byte, rec T) ([]byte, error)
	Decode(r io.Reader, expectedID uint64) (T, error)
}

// Encode is a convenience wrapper around Append with a fresh buffer.
func Encode[T any](c Codec[T], rec T) ([]byte, error) {
	return c.Append(nil, rec)
}

func capacityErr(kind entity.Kind, id uint64, field string, n, limit uint64) error {
	return apperrors.Newf(apperrors.ErrCapacity, "encode "+string(kind),
		"%s %d: %s length %d exceeds %d", kind, id, field, n, limit)
}

func checkList(kind entity.Kind, id uint64, field string, n int) error {
	if n > MaxListLen {
		return capacityErr(kind, id, field, uint64(n), MaxListLen)
	}
	return nil
}

func checkString(kind entity.Kind, id uint64, field string, s string, limit uint64) error {
	if uint64(len(s)) > limit {
		return capacityErr(kind, id, field, uint64(len(s)), limit)
	}
	return nil
}

var le = binary.LittleEndian

// fieldReader reads fixed-width little-endian fields with a sticky error so
// decoders can read a whole record and check once.
type fieldReader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (f *fieldReader) fill(n int) []byte {
	if f.err != nil {
		return nil
	}
	if _, err := io.ReadFull(f.r, f.buf[:n]); err != nil {
		f.err = err
		return nil
	}
	return f.buf[:n]
}

func (f *fieldReader) u16() uint16 {
	if b := f.fill(2); b != nil {
		return le.Uint16(b)
	}
	return 0
}

func (f *fieldReader) u32() uint32 {
	if b := f.fill(4); b != nil {
		return le.Uint32(b)
	}
	return 0
}

func (f *fieldReader) u64() uint64 {
	if b := f.fill(8); b != nil {
		return le.Uint64(b)
	}
	return 0
}

func (f *fieldReader) f64() float64 {
	return math.Float64frombits(f.u64())
}

// str reads n bytes of UTF-8. The builder grows with the data actually read,
// so a corrupt length cannot force one huge allocation.
func (f *fieldReader) str(n uint64) string {
	if f.err != nil || n == 0 {
		return ""
	}
	var sb strings.Builder
	if _, err := io.CopyN(&sb, f.r, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		f.err = err
		return ""
	}
	return sb.String()
}

// header reads the leading id and checks it against expected.
func (f *fieldReader) header(kind entity.Kind, expected uint64) error {
	id := f.u64()
	if f.err != nil {
		return f.failure(kind, expected)
	}
	if id != expected {
		return apperrors.Newf(apperrors.ErrIntegrity, "decode "+string(kind),
			"expected id %d, found %d", expected, id)
	}
	return nil
}

func (f *fieldReader) failure(kind entity.Kind, id uint64) error {
	if f.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperrors.Newf(apperrors.ErrIntegrity, "decode "+string(kind),
		"record %d truncated", id), f.err)
}
