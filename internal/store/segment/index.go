package segment

import (
	"bufio"
	"cmp"
	"fmt"
	"os"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// SortStats summarises one sort pass.
type SortStats struct {
	Entries    int
	Duplicates int
	MinID      uint64
	MaxID      uint64
}

// LoadIndex reads every entry of an index file into memory, in file order.
func LoadIndex(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	if len(data)%EntrySize != 0 {
		return nil, apperrors.Newf(apperrors.ErrIntegrity, "load index",
			"%s: size %d is not a multiple of %d", path, len(data), EntrySize)
	}
	entries := make([]Entry, len(data)/EntrySize)
	for i := range entries {
		entries[i] = ReadEntry(data[i*EntrySize:])
	}
	return entries, nil
}

// WriteIndex atomically replaces path with the given entries. It writes to a
// .tmp file first and renames on success.
func WriteIndex(path string, entries []Entry) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, writeBufferSize)
	var buf [EntrySize]byte
	for _, e := range entries {
		PutEntry(buf[:], e)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("writing index entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// SortEntries stable-sorts entries by id and collapses duplicate ids so that
// the entry appended last wins. The result is strictly ascending; records
// whose entries were dropped stay in the data file but become unreachable.
func SortEntries(entries []Entry) ([]Entry, int) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if len(entries) < 2 {
		return entries, 0
	}
	out := entries[:1]
	for _, e := range entries[1:] {
		if e.ID == out[len(out)-1].ID {
			out[len(out)-1] = e
			continue
		}
		out = append(out, e)
	}
	return out, len(entries) - len(out)
}

// SortIndex loads indexPath fully into memory, sorts it and writes the
// result to sortedPath. The whole index must fit in memory, which is why the
// work kind is sharded before this pass.
func SortIndex(indexPath, sortedPath string) (SortStats, error) {
	entries, err := LoadIndex(indexPath)
	if err != nil {
		return SortStats{}, err
	}
	sorted, dups := SortEntries(entries)
	if err := WriteIndex(sortedPath, sorted); err != nil {
		return SortStats{}, err
	}
	stats := SortStats{Entries: len(sorted), Duplicates: dups}
	if len(sorted) > 0 {
		stats.MinID = sorted[0].ID
		stats.MaxID = sorted[len(sorted)-1].ID
	}
	return stats, nil
}
