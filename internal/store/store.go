// Package store is the read side of the flat-file record store. A Store
// serves point lookups by numeric id for one entity kind: it memory-maps the
// sorted index of every bucket, binary-searches the fixed 16-byte slots, and
// decodes the record at the found offset with the kind's codec.
//
// A Store must only be opened after every write stage that touches its files
// has finished and closed them; the files are treated as immutable.
package store

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

type bucket struct {
	indexFile *os.File
	index     mmap.MMap
	n         int
	data      *os.File
	dataSize  int64
}

// Store is safe for concurrent lookups.
type Store[T any] struct {
	layout  shard.Layout
	codec   codec.Codec[T]
	buckets []*bucket
	logger  *slog.Logger
}

// Open maps every bucket of layout. A missing sorted index or data file is an
// error: the store was not completely built.
func Open[T any](layout shard.Layout, c codec.Codec[T]) (*Store[T], error) {
	if layout.Kind != c.Kind() {
		return nil, fmt.Errorf("layout kind %s does not match codec kind %s", layout.Kind, c.Kind())
	}
	s := &Store[T]{
		layout:  layout,
		codec:   c,
		buckets: make([]*bucket, 0, layout.Buckets),
		logger:  slog.Default().With("component", "store", "kind", layout.Kind),
	}
	var entries int
	for b := 0; b < layout.Buckets; b++ {
		bk, err := openBucket(layout, b)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening %s bucket %d: %w", layout.Kind, b, err)
		}
		s.buckets = append(s.buckets, bk)
		entries += bk.n
	}
	s.logger.Debug("store opened", "buckets", layout.Buckets, "entries", entries, "dir", layout.Dir)
	return s, nil
}

func openBucket(layout shard.Layout, b int) (*bucket, error) {
	xf, err := os.Open(layout.SortedIndexPath(b))
	if err != nil {
		return nil, fmt.Errorf("opening sorted index: %w", err)
	}
	info, err := xf.Stat()
	if err != nil {
		xf.Close()
		return nil, fmt.Errorf("stat sorted index: %w", err)
	}
	if info.Size()%segment.EntrySize != 0 {
		xf.Close()
		return nil, apperrors.Newf(apperrors.ErrIntegrity, "open store",
			"%s: size %d is not a multiple of %d", layout.SortedIndexPath(b), info.Size(), segment.EntrySize)
	}
	bk := &bucket{indexFile: xf, n: int(info.Size() / segment.EntrySize)}
	if bk.n > 0 {
		m, err := mmap.Map(xf, mmap.RDONLY, 0)
		if err != nil {
			xf.Close()
			return nil, fmt.Errorf("mapping sorted index: %w", err)
		}
		bk.index = m
	}
	df, err := os.Open(layout.DataPath(b))
	if err != nil {
		bk.close()
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	dinfo, err := df.Stat()
	if err != nil {
		df.Close()
		bk.close()
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	bk.data = df
	bk.dataSize = dinfo.Size()
	return bk, nil
}

// find binary-searches the sorted slots for id. Ids outside [first, last]
// are rejected without entering the search.
func (bk *bucket) find(id uint64) (segment.Entry, bool) {
	if bk.n == 0 {
		return segment.Entry{}, false
	}
	if id < segment.EntryID(bk.index, 0) || id > segment.EntryID(bk.index, bk.n-1) {
		return segment.Entry{}, false
	}
	lo, hi := 0, bk.n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch midID := segment.EntryID(bk.index, mid); {
		case midID == id:
			return segment.ReadEntry(bk.index[mid*segment.EntrySize:]), true
		case midID < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return segment.Entry{}, false
}

func (bk *bucket) close() error {
	var firstErr error
	if bk.index != nil {
		if err := bk.index.Unmap(); err != nil {
			firstErr = err
		}
		bk.index = nil
	}
	if bk.indexFile != nil {
		if err := bk.indexFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if bk.data != nil {
		if err := bk.data.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Kind returns the entity kind served by this store.
func (s *Store[T]) Kind() entity.Kind {
	return s.layout.Kind
}

// Layout returns the file layout this store was opened with.
func (s *Store[T]) Layout() shard.Layout {
	return s.layout
}

// NumBuckets returns the number of buckets; 1 for unsharded kinds.
func (s *Store[T]) NumBuckets() int {
	return len(s.buckets)
}

// Len returns the number of entries in bucket b's sorted index.
func (s *Store[T]) Len(b int) int {
	return s.buckets[b].n
}

// Entry returns the i-th sorted entry of bucket b.
func (s *Store[T]) Entry(b, i int) segment.Entry {
	return segment.ReadEntry(s.buckets[b].index[i*segment.EntrySize:])
}

// Find locates id without decoding its record.
func (s *Store[T]) Find(id uint64) (segment.Entry, bool) {
	return s.buckets[s.layout.Bucket(id)].find(id)
}

// Lookup returns the record stored under id, errors.ErrNotFound when the id
// is absent, or errors.ErrIntegrity when the data file disagrees with the
// index.
func (s *Store[T]) Lookup(id uint64) (T, error) {
	b := s.layout.Bucket(id)
	e, ok := s.buckets[b].find(id)
	if !ok {
		var zero T
		return zero, apperrors.Newf(apperrors.ErrNotFound, "lookup "+string(s.layout.Kind), "id %d", id)
	}
	return s.Read(b, e)
}

// LookupText resolves a textual OpenAlex id and looks it up.
func (s *Store[T]) LookupText(text string) (T, error) {
	id := entity.ExtractID(text)
	if id == 0 {
		var zero T
		return zero, apperrors.Newf(apperrors.ErrInvalidInput, "lookup "+string(s.layout.Kind), "no numeric id in %q", text)
	}
	return s.Lookup(id)
}

// Read decodes the record an entry of bucket b points at.
func (s *Store[T]) Read(b int, e segment.Entry) (T, error) {
	bk := s.buckets[b]
	return segment.ReadRecord(bk.data, bk.dataSize, s.codec, e)
}

// Close unmaps and closes every bucket.
func (s *Store[T]) Close() error {
	var firstErr error
	for b, bk := range s.buckets {
		if err := bk.close(); err != nil {
			s.logger.Error("closing bucket", "bucket", b, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.buckets = nil
	return firstErr
}

// Codec returns the codec records are decoded with.
func (s *Store[T]) Codec() codec.Codec[T] {
	return s.codec
}
