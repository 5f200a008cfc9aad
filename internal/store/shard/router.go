package shard

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
)

// Router owns one open segment.Pair per bucket of a layout and routes each
// record to the pair of its canonical bucket. It has a single writer; the
// reshard pass that drives it is sequential.
type Router struct {
	layout Layout
	pairs  []*segment.Pair
	logger *slog.Logger
}

// NewRouter creates (truncating) the data and index file of every bucket.
func NewRouter(layout Layout) (*Router, error) {
	r := &Router{
		layout: layout,
		pairs:  make([]*segment.Pair, 0, layout.Buckets),
		logger: slog.Default().With("component", "shard-router", "kind", layout.Kind),
	}
	for b := 0; b < layout.Buckets; b++ {
		p, err := segment.CreatePair(layout.DataPath(b), layout.IndexPath(b))
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating files for bucket %d: %w", b, err)
		}
		r.pairs = append(r.pairs, p)
	}
	r.logger.Info("shard router ready", "num_buckets", layout.Buckets, "dir", layout.Dir)
	return r, nil
}

// Append writes an encoded record into the bucket that owns id and returns
// that bucket.
func (r *Router) Append(id uint64, record []byte) (int, error) {
	b := r.layout.Bucket(id)
	if _, err := r.pairs[b].Append(id, record); err != nil {
		return b, fmt.Errorf("appending to bucket %d: %w", b, err)
	}
	return b, nil
}

// Counts returns the number of records routed to each bucket so far.
func (r *Router) Counts() []int {
	counts := make([]int, len(r.pairs))
	for i, p := range r.pairs {
		counts[i] = p.Count()
	}
	return counts
}

// Close flushes and closes every bucket's files.
func (r *Router) Close() error {
	return r.closeAll()
}

// closeAll closes every pair, collecting the first error encountered.
func (r *Router) closeAll() error {
	var firstErr error
	for b, p := range r.pairs {
		if err := p.Close(); err != nil {
			r.logger.Error("close failed", "bucket", b, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.pairs = nil
	return firstErr
}
