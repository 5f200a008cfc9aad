package segment

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

const writeBufferSize = 1 << 20

// Pair is the single writer of one data file and its index file. Each
// Append writes the record bytes and then the index entry pointing at them;
// the pair is only consistent on disk after Close returns nil.
type Pair struct {
	dataPath  string
	indexPath string
	dataFile  *os.File
	indexFile *os.File
	data      *bufio.Writer
	index     *bufio.Writer
	offset    int64
	count     int
	entryBuf  [EntrySize]byte
}

// CreatePair creates (truncating) a data file and an index file. Outputs of
// an interrupted earlier run are discarded, never resumed.
func CreatePair(dataPath, indexPath string) (*Pair, error) {
	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	df, err := os.Create(dataPath)
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}
	xf, err := os.Create(indexPath)
	if err != nil {
		df.Close()
		return nil, fmt.Errorf("creating index file: %w", err)
	}
	return &Pair{
		dataPath:  dataPath,
		indexPath: indexPath,
		dataFile:  df,
		indexFile: xf,
		data:      bufio.NewWriterSize(df, writeBufferSize),
		index:     bufio.NewWriterSize(xf, writeBufferSize/8),
	}, nil
}

// Append writes one encoded record and its index entry, returning the
// offset the record starts at.
func (p *Pair) Append(id uint64, record []byte) (int64, error) {
	offset := p.offset
	if _, err := p.data.Write(record); err != nil {
		return 0, fmt.Errorf("writing record %d to %s: %w", id, p.dataPath, err)
	}
	PutEntry(p.entryBuf[:], Entry{ID: id, Offset: offset})
	if _, err := p.index.Write(p.entryBuf[:]); err != nil {
		return 0, fmt.Errorf("writing index entry %d to %s: %w", id, p.indexPath, err)
	}
	p.offset += int64(len(record))
	p.count++
	return offset, nil
}

// Count returns the number of records appended so far.
func (p *Pair) Count() int {
	return p.count
}

// Size returns the number of data bytes appended so far.
func (p *Pair) Size() int64 {
	return p.offset
}

func (p *Pair) DataPath() string  { return p.dataPath }
func (p *Pair) IndexPath() string { return p.indexPath }

// Close flushes, syncs and closes both files, returning the first error.
func (p *Pair) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(closeBuffered(p.data, p.dataFile))
	keep(closeBuffered(p.index, p.indexFile))
	if firstErr != nil {
		return fmt.Errorf("closing pair %s: %w", p.dataPath, firstErr)
	}
	return nil
}

func closeBuffered(w *bufio.Writer, f *os.File) error {
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
