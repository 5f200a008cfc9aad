package store

import (
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// build writes recs through a router, sorts every bucket and opens the store.
func build[T any](t *testing.T, layout shard.Layout, c codec.Codec[T], recs []T) *Store[T] {
	t.Helper()
	r, err := shard.NewRouter(layout)
	require.NoError(t, err)
	for _, rec := range recs {
		data, err := codec.Encode(c, rec)
		require.NoError(t, err)
		_, err = r.Append(c.ID(rec), data)
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())
	for b := 0; b < layout.Buckets; b++ {
		_, err := segment.SortIndex(layout.IndexPath(b), layout.SortedIndexPath(b))
		require.NoError(t, err)
	}
	s, err := Open(layout, c)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindScenario(t *testing.T) {
	dir := t.TempDir()
	layout := shard.StoreLayout(dir, "wjf", entity.KindVenue, 1)
	require.NoError(t, segment.WriteIndex(layout.SortedIndexPath(0), []segment.Entry{
		{ID: 10, Offset: 0}, {ID: 20, Offset: 16}, {ID: 30, Offset: 32},
	}))
	require.NoError(t, os.WriteFile(layout.DataPath(0), make([]byte, 48), 0o644))

	s, err := Open(layout, codec.Venue)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Find(15)
	assert.False(t, ok)
	e, ok := s.Find(20)
	assert.True(t, ok)
	assert.Equal(t, int64(16), e.Offset)
	_, ok = s.Find(5)
	assert.False(t, ok)
	e, ok = s.Find(30)
	assert.True(t, ok)
	assert.Equal(t, int64(32), e.Offset)
	e, ok = s.Find(10)
	assert.True(t, ok)
	assert.Equal(t, int64(0), e.Offset)
	_, ok = s.Find(31)
	assert.False(t, ok)
}

func TestAuthorLookupScenario(t *testing.T) {
	layout := shard.StoreLayout(t.TempDir(), "wjf", entity.KindAuthor, 64)
	s := build(t, layout, codec.Author, []entity.Author{
		{ID: entity.ExtractID("https://openalex.org/A42"), Name: "Jane Doe"},
		{ID: 7, Name: "John Roe"},
	})

	a, err := s.Lookup(42)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", a.Name)

	a, err = s.LookupText("https://openalex.org/A7")
	require.NoError(t, err)
	assert.Equal(t, "John Roe", a.Name)

	_, err = s.Lookup(43)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.LookupText("")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEmptyStore(t *testing.T) {
	layout := shard.StoreLayout(t.TempDir(), "wjf", entity.KindConcept, 64)
	s := build[entity.Concept](t, layout, codec.Concept, nil)
	assert.Equal(t, 0, s.Len(0))
	_, err := s.Lookup(1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestShardedWorkLookup(t *testing.T) {
	const buckets = 8
	layout := shard.StoreLayout(t.TempDir(), "wjf", entity.KindWork, buckets)

	rng := rand.New(rand.NewSource(1))
	present := make(map[uint64]entity.Work)
	var works []entity.Work
	for len(works) < 500 {
		id := uint64(rng.Int63n(1_000_000)) + 1
		if _, dup := present[id]; dup {
			continue
		}
		w := entity.Work{
			ID:         id,
			Year:       uint16(1900 + rng.Intn(124)),
			Title:      fmt.Sprintf("work %d", id),
			References: []uint64{id + 1, id + 2},
		}
		present[id] = w
		works = append(works, w)
	}
	s := build(t, layout, codec.Work, works)
	require.Equal(t, buckets, s.NumBuckets())

	for b := 0; b < buckets; b++ {
		for i := 0; i < s.Len(b); i++ {
			e := s.Entry(b, i)
			assert.Equal(t, b, shard.BucketOf(e.ID, buckets))
			if i > 0 {
				assert.Less(t, s.Entry(b, i-1).ID, e.ID)
			}
		}
	}
	for id, want := range present {
		got, err := s.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for i := 0; i < 200; i++ {
		id := uint64(rng.Int63n(2_000_000))
		if _, ok := present[id]; ok {
			continue
		}
		_, err := s.Lookup(id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, "id %d", id)
	}
}

func TestLookupDetectsCorruption(t *testing.T) {
	layout := shard.StoreLayout(t.TempDir(), "wjf", entity.KindVenue, 1)
	s := build(t, layout, codec.Venue, []entity.Venue{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}})
	e1, _ := s.Find(1)
	e2, _ := s.Find(2)
	s.Close()

	// Swap the offsets so each id points at the other record.
	require.NoError(t, segment.WriteIndex(layout.SortedIndexPath(0), []segment.Entry{
		{ID: 1, Offset: e2.Offset}, {ID: 2, Offset: e1.Offset},
	}))
	s, err := Open(layout, codec.Venue)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Lookup(1)
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
}

func TestOpenMissingFiles(t *testing.T) {
	layout := shard.StoreLayout(t.TempDir(), "wjf", entity.KindWork, 4)
	_, err := Open(layout, codec.Work)
	assert.Error(t, err)

	_, err = Open(layout, codec.Venue)
	assert.Error(t, err)
}

func TestFingerprintIgnoresOffsets(t *testing.T) {
	works := []entity.Work{
		{ID: 5, Title: "five"},
		{ID: 9, Title: "nine", Concepts: []entity.ScoredConcept{{ConceptID: 1, Score: 0.5}}},
		{ID: 12, Title: "twelve", VenueID: 3},
	}
	reversed := []entity.Work{works[2], works[1], works[0]}

	a := build(t, shard.StoreLayout(t.TempDir(), "wjf", entity.KindWork, 2), codec.Work, works)
	b := build(t, shard.StoreLayout(t.TempDir(), "wjf", entity.KindWork, 2), codec.Work, reversed)

	fa, err := ComputeFingerprint(a)
	require.NoError(t, err)
	fb, err := ComputeFingerprint(b)
	require.NoError(t, err)
	assert.True(t, fa.Equal(fb), "%s vs %s", fa, fb)
	assert.Equal(t, 3, fa.Records)

	changed := []entity.Work{works[0], works[1], {ID: 12, Title: "twelve!", VenueID: 3}}
	c := build(t, shard.StoreLayout(t.TempDir(), "wjf", entity.KindWork, 2), codec.Work, changed)
	fc, err := ComputeFingerprint(c)
	require.NoError(t, err)
	assert.False(t, fa.Equal(fc))
	assert.Empty(t, fa.Diff(fc))
}

func BenchmarkLookup(b *testing.B) {
	dir := b.TempDir()
	layout := shard.StoreLayout(dir, "wjf", entity.KindAuthor, 1)
	p, err := segment.CreatePair(layout.DataPath(0), layout.IndexPath(0))
	require.NoError(b, err)
	const n = 100_000
	for i := 1; i <= n; i++ {
		data, _ := codec.Encode(codec.Author, entity.Author{ID: uint64(i * 3), Name: "author"})
		_, err := p.Append(uint64(i*3), data)
		require.NoError(b, err)
	}
	require.NoError(b, p.Close())
	_, err = segment.SortIndex(layout.IndexPath(0), layout.SortedIndexPath(0))
	require.NoError(b, err)
	s, err := Open(layout, codec.Author)
	require.NoError(b, err)
	defer s.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Lookup(uint64((i%n + 1) * 3)); err != nil {
			b.Fatal(err)
		}
	}
}
