package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/tracing"
)

// SortAll writes the sorted index of every bucket of kind. Buckets are
// independent and sorted in parallel, at most one per worker.
func (b *Builder) SortAll(ctx context.Context, kind entity.Kind) ([]segment.SortStats, error) {
	layout := b.StoreLayout(kind)
	stats := make([]segment.SortStats, layout.Buckets)
	err := b.stage(ctx, StageSort, kind, func(ctx context.Context, ev *StageEvent) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for bucket := 0; bucket < layout.Buckets; bucket++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				_, span := tracing.StartChildSpan(gctx, fmt.Sprintf("sort-%s-%d", kind, bucket))
				defer span.End()

				st, err := segment.SortIndex(layout.IndexPath(bucket), layout.SortedIndexPath(bucket))
				if err != nil {
					return fmt.Errorf("bucket %d: %w", bucket, err)
				}
				stats[bucket] = st
				span.SetAttr("entries", st.Entries)

				b.metrics.SetBucketRecords(string(kind), bucket, st.Entries)
				b.metrics.DuplicateIDsTotal.WithLabelValues(string(kind)).Add(float64(st.Duplicates))
				if st.Duplicates > 0 {
					b.log(gctx).Warn("duplicate ids collapsed, last write wins",
						"kind", kind, "bucket", bucket, "duplicates", st.Duplicates)
				}
				b.bucketEvent(gctx, StageEvent{
					Stage:      StageSort,
					Kind:       string(kind),
					Bucket:     bucket,
					Path:       layout.DataPath(bucket),
					Records:    int64(st.Entries),
					Duplicates: st.Duplicates,
					MinID:      st.MinID,
					MaxID:      st.MaxID,
					Bytes:      fileSize(layout.DataPath(bucket)),
					Duration:   time.Since(start),
				})
				return nil
			})
		}
		err := g.Wait()
		for _, st := range stats {
			ev.Records += int64(st.Entries)
			ev.Duplicates += st.Duplicates
		}
		return err
	})
	return stats, err
}
