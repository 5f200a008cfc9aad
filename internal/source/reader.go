// Package source adapts OpenAlex snapshot files into entity records. It
// discovers the snapshot files of a kind, streams their lines through the
// matching decompressor and parses each line into a record.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

const initialLineBuffer = 64 * 1024

// ErrLineTooLong marks a line longer than the reader's maximum. The line is
// consumed and reported through LineErr; reading continues with the next one.
var ErrLineTooLong = apperrors.New(apperrors.ErrMalformedRecord, "read line", "line exceeds the maximum length")

// Reader yields the lines of one snapshot file.
type Reader struct {
	path    string
	file    *os.File
	closers []func() error
	br      *bufio.Reader
	max     int
	buf     []byte
	cur     []byte
	line    int
	lineErr error
	err     error
}

// Open opens path and selects a decompressor from its extension: .gz is
// gzip, .zst is zstd and anything else is read as plain text.
func Open(path string, maxLineBytes int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source file %s: %w", path, err)
	}
	r := &Reader{path: path, file: f}

	var src io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		r.closers = append(r.closers, gz.Close)
		src = gz
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		r.closers = append(r.closers, func() error { zr.Close(); return nil })
		src = zr
	}

	size := initialLineBuffer
	if maxLineBytes < size {
		size = maxLineBytes
	}
	r.br = bufio.NewReaderSize(src, size)
	r.max = maxLineBytes
	return r, nil
}

// Next advances to the next non-empty line. An overlong line still counts as
// a line: Next returns true, Line is nil and LineErr reports it.
func (r *Reader) Next() bool {
	r.cur, r.lineErr = nil, nil
	for r.err == nil {
		line, n, tooLong, err := r.readLine()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
		r.line++
		if tooLong {
			r.lineErr = fmt.Errorf("%w: %d bytes, limit %d", ErrLineTooLong, n, r.max)
			return true
		}
		if len(line) > 0 {
			r.cur = line
			return true
		}
	}
	return false
}

// readLine returns the next line without its terminator and the number of
// bytes consumed. A line over the limit is drained to its newline and
// reported as too long.
func (r *Reader) readLine() (line []byte, n int, tooLong bool, err error) {
	r.buf = r.buf[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		n += len(chunk)
		if n <= r.max+2 {
			r.buf = append(r.buf, chunk...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if n == 0 {
				return nil, 0, false, io.EOF
			}
			break
		}
		if err != nil {
			return nil, n, false, err
		}
		break
	}
	if n > r.max+2 {
		return nil, n, true, nil
	}
	line = bytes.TrimSuffix(r.buf, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) > r.max {
		return nil, n, true, nil
	}
	return line, n, false, nil
}

// Line returns the current line. The slice is only valid until the next
// call to Next.
func (r *Reader) Line() []byte {
	return r.cur
}

// LineErr reports why the current line could not be read, or nil.
func (r *Reader) LineErr() error {
	return r.lineErr
}

// LineNumber returns the 1-based number of the current line.
func (r *Reader) LineNumber() int {
	return r.line
}

func (r *Reader) Path() string {
	return r.path
}

// Err returns the first read or decompression error, if any.
func (r *Reader) Err() error {
	if r.err != nil {
		return fmt.Errorf("reading %s after line %d: %w", r.path, r.line, r.err)
	}
	return nil
}

func (r *Reader) Close() error {
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
