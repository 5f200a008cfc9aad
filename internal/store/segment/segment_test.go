package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

func writePair(t *testing.T, dir string, authors []entity.Author) (string, string) {
	t.Helper()
	dataPath := filepath.Join(dir, "author-data.wjf")
	indexPath := filepath.Join(dir, "author-index.wjf")
	p, err := CreatePair(dataPath, indexPath)
	require.NoError(t, err)
	for _, a := range authors {
		rec, err := codec.Encode(codec.Author, a)
		require.NoError(t, err)
		_, err = p.Append(a.ID, rec)
		require.NoError(t, err)
	}
	require.NoError(t, p.Close())
	return dataPath, indexPath
}

func TestPairAppendOffsets(t *testing.T) {
	dir := t.TempDir()
	p, err := CreatePair(filepath.Join(dir, "d"), filepath.Join(dir, "i"))
	require.NoError(t, err)

	off1, err := p.Append(30, make([]byte, 10))
	require.NoError(t, err)
	off2, err := p.Append(10, make([]byte, 6))
	require.NoError(t, err)
	assert.Equal(t, int64(0), off1)
	assert.Equal(t, int64(10), off2)
	assert.Equal(t, 2, p.Count())
	assert.Equal(t, int64(16), p.Size())
	require.NoError(t, p.Close())

	entries, err := LoadIndex(filepath.Join(dir, "i"))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ID: 30, Offset: 0}, {ID: 10, Offset: 10}}, entries)

	info, err := os.Stat(filepath.Join(dir, "i"))
	require.NoError(t, err)
	assert.Equal(t, int64(2*EntrySize), info.Size())
}

func TestCreatePairTruncates(t *testing.T) {
	dir := t.TempDir()
	dataPath, indexPath := writePair(t, dir, []entity.Author{{ID: 1, Name: "old"}})
	p, err := CreatePair(dataPath, indexPath)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	entries, err := LoadIndex(indexPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSortIndexOrdersAndReportsRange(t *testing.T) {
	dir := t.TempDir()
	_, indexPath := writePair(t, dir, []entity.Author{
		{ID: 50, Name: "e"}, {ID: 3, Name: "a"}, {ID: 20, Name: "c"}, {ID: 7, Name: "b"},
	})
	sortedPath := filepath.Join(dir, "author-sorted_index.wjf")

	stats, err := SortIndex(indexPath, sortedPath)
	require.NoError(t, err)
	assert.Equal(t, SortStats{Entries: 4, MinID: 3, MaxID: 50}, stats)

	sorted, err := LoadIndex(sortedPath)
	require.NoError(t, err)
	for i := 1; i < len(sorted); i++ {
		assert.Less(t, sorted[i-1].ID, sorted[i].ID)
	}
	_, err = os.Stat(sortedPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSortEntriesLastWriteWins(t *testing.T) {
	entries := []Entry{{5, 0}, {1, 16}, {5, 32}, {3, 48}, {5, 64}}
	sorted, dups := SortEntries(entries)
	assert.Equal(t, 2, dups)
	assert.Equal(t, []Entry{{1, 16}, {3, 48}, {5, 64}}, sorted)
}

func TestSortIndexEmpty(t *testing.T) {
	dir := t.TempDir()
	_, indexPath := writePair(t, dir, nil)
	sortedPath := filepath.Join(dir, "sorted")
	stats, err := SortIndex(indexPath, sortedPath)
	require.NoError(t, err)
	assert.Equal(t, SortStats{}, stats)

	info, err := os.Stat(sortedPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLoadIndexRejectsTornFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn")
	require.NoError(t, os.WriteFile(path, make([]byte, EntrySize+3), 0o644))
	_, err := LoadIndex(path)
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
}

func TestDataReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	authors := []entity.Author{{ID: 42, Name: "Jane Doe"}, {ID: 7, Name: "John Roe"}}
	dataPath, indexPath := writePair(t, dir, authors)

	entries, err := LoadIndex(indexPath)
	require.NoError(t, err)

	r, err := OpenDataReader(dataPath, codec.Author)
	require.NoError(t, err)
	defer r.Close()
	for i, e := range entries {
		got, err := r.Read(e)
		require.NoError(t, err)
		assert.Equal(t, authors[i], got)
	}

	_, err = r.Read(Entry{ID: 42, Offset: entries[1].Offset})
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)

	_, err = r.Read(Entry{ID: 42, Offset: 1 << 40})
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
}
