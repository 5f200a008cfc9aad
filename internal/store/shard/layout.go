// Package shard maps numeric ids to buckets and buckets to files. Each
// bucket owns one data file, one append-order index and one sorted index.
// The Router dispatches encoded records to the canonical bucket of their id
// during the reshard pass.
package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
)

// BucketOf returns the canonical bucket of id among n buckets.
func BucketOf(id uint64, n int) int {
	return int(id % uint64(n))
}

// Layout names the files of one entity kind inside one directory.
//
// Unsharded: <dir>/<kind>-{data,index,sorted_index}.<ext>
// Sharded:   <dir>/<kind>-{data,index,sorted_index}-<bucket>.<ext>
type Layout struct {
	Dir     string
	Ext     string
	Kind    entity.Kind
	Buckets int
	Sharded bool
}

// StoreLayout returns the canonical layout of kind. Only works are sharded;
// every other kind lives in a single bucket.
func StoreLayout(dir, ext string, kind entity.Kind, workBuckets int) Layout {
	if kind == entity.KindWork {
		return Layout{Dir: dir, Ext: ext, Kind: kind, Buckets: workBuckets, Sharded: true}
	}
	return Layout{Dir: dir, Ext: ext, Kind: kind, Buckets: 1}
}

// ProvisionalLayout returns the per-worker layout used during extraction.
// Bucket numbers here are worker numbers, not id hashes.
func ProvisionalLayout(dir, ext string, kind entity.Kind, workers int) Layout {
	return Layout{Dir: dir, Ext: ext, Kind: kind, Buckets: workers, Sharded: true}
}

func (l Layout) name(role string, bucket int) string {
	if l.Sharded {
		return filepath.Join(l.Dir, fmt.Sprintf("%s-%s-%d.%s", l.Kind, role, bucket, l.Ext))
	}
	return filepath.Join(l.Dir, fmt.Sprintf("%s-%s.%s", l.Kind, role, l.Ext))
}

func (l Layout) DataPath(bucket int) string        { return l.name("data", bucket) }
func (l Layout) IndexPath(bucket int) string       { return l.name("index", bucket) }
func (l Layout) SortedIndexPath(bucket int) string { return l.name("sorted_index", bucket) }

// Bucket returns the bucket that owns id in this layout.
func (l Layout) Bucket(id uint64) int {
	if l.Buckets <= 1 {
		return 0
	}
	return BucketOf(id, l.Buckets)
}

// Existing lists the bucket numbers that have a data file on disk, in
// ascending order. For a provisional layout this is every worker that
// produced output.
func (l Layout) Existing() ([]int, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading directory %s: %w", l.Dir, err)
	}
	if !l.Sharded {
		for _, e := range entries {
			if filepath.Join(l.Dir, e.Name()) == l.DataPath(0) {
				return []int{0}, nil
			}
		}
		return nil, nil
	}
	prefix := fmt.Sprintf("%s-data-", l.Kind)
	suffix := "." + l.Ext
	var buckets []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
		if err != nil || n < 0 {
			continue
		}
		buckets = append(buckets, n)
	}
	sort.Ints(buckets)
	return buckets, nil
}

// Remove deletes every file of bucket, ignoring files that do not exist.
func (l Layout) Remove(bucket int) error {
	for _, p := range []string{l.DataPath(bucket), l.IndexPath(bucket), l.SortedIndexPath(bucket)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}
