package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

const readBufferSize = 4096

// DataReader decodes records from a data file at offsets taken from its
// index. It is not safe for concurrent use; the store's lookup path uses
// ReadRecord directly on a shared file instead.
type DataReader[T any] struct {
	file  *os.File
	size  int64
	codec codec.Codec[T]
	buf   *bufio.Reader
}

func OpenDataReader[T any](path string, c codec.Codec[T]) (*DataReader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	return &DataReader[T]{
		file:  f,
		size:  info.Size(),
		codec: c,
		buf:   bufio.NewReaderSize(nil, readBufferSize),
	}, nil
}

// Read decodes the record for e, checking that it carries e.ID.
func (r *DataReader[T]) Read(e Entry) (T, error) {
	if e.Offset < 0 || e.Offset >= r.size {
		var zero T
		return zero, apperrors.Newf(apperrors.ErrIntegrity, "read record",
			"offset %d for id %d outside data file of %d bytes", e.Offset, e.ID, r.size)
	}
	r.buf.Reset(io.NewSectionReader(r.file, e.Offset, r.size-e.Offset))
	return r.codec.Decode(r.buf, e.ID)
}

func (r *DataReader[T]) Close() error {
	return r.file.Close()
}

// ReadRecord decodes the record at offset from a data file of the given
// size. It only uses ReadAt, so concurrent calls on one file are safe.
func ReadRecord[T any](f io.ReaderAt, size int64, c codec.Codec[T], e Entry) (T, error) {
	if e.Offset < 0 || e.Offset >= size {
		var zero T
		return zero, apperrors.Newf(apperrors.ErrIntegrity, "read record",
			"offset %d for id %d outside data file of %d bytes", e.Offset, e.ID, size)
	}
	br := bufio.NewReaderSize(io.NewSectionReader(f, e.Offset, size-e.Offset), readBufferSize)
	return c.Decode(br, e.ID)
}
