package store

import (
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// Reader is the kind-erased view of a Store, for callers that handle every
// entity kind the same way.
type Reader interface {
	Kind() entity.Kind
	NumBuckets() int
	Len(bucket int) int
	Entry(bucket, i int) segment.Entry
	LookupAny(id uint64) (any, error)
	Fingerprint() (Fingerprint, error)
	Close() error
}

// LookupAny is Lookup with the record returned as an interface value.
func (s *Store[T]) LookupAny(id uint64) (any, error) {
	rec, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store[T]) Fingerprint() (Fingerprint, error) {
	return ComputeFingerprint(s)
}

// OpenReader opens the store of layout.Kind with that kind's codec.
func OpenReader(layout shard.Layout) (Reader, error) {
	switch layout.Kind {
	case entity.KindWork:
		return openReader(layout, codec.Work)
	case entity.KindAuthor:
		return openReader(layout, codec.Author)
	case entity.KindConcept:
		return openReader(layout, codec.Concept)
	case entity.KindVenue:
		return openReader(layout, codec.Venue)
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "open store", "unknown kind %q", layout.Kind)
	}
}

func openReader[T any](layout shard.Layout, c codec.Codec[T]) (Reader, error) {
	s, err := Open(layout, c)
	if err != nil {
		return nil, err
	}
	return s, nil
}
