package pipeline

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
)

// Reshard replays every provisional work pair, in worker order and in each
// pair's append order, into the canonical id-mod-N buckets. Each record is
// decoded against its index entry before it is re-encoded, so a damaged
// provisional file fails the stage. The provisional files are removed
// afterwards unless the build keeps them.
func (b *Builder) Reshard(ctx context.Context) ([]int, error) {
	var counts []int
	err := b.stage(ctx, StageReshard, entity.KindWork, func(ctx context.Context, ev *StageEvent) error {
		prov := b.provisionalLayout()
		workers, err := prov.Existing()
		if err != nil {
			return err
		}
		router, err := shard.NewRouter(b.StoreLayout(entity.KindWork))
		if err != nil {
			return err
		}
		var buf []byte
		for _, w := range workers {
			if err := ctx.Err(); err != nil {
				router.Close()
				return err
			}
			n, err := replay(prov, w, router, &buf)
			if err != nil {
				router.Close()
				return fmt.Errorf("replaying provisional pair %d: %w", w, err)
			}
			ev.Records += n
			b.log(ctx).Debug("provisional pair replayed", "worker", w, "records", n)
		}
		counts = router.Counts()
		if err := router.Close(); err != nil {
			return err
		}

		if b.keepProvisional {
			return nil
		}
		for _, w := range workers {
			if err := prov.Remove(w); err != nil {
				return err
			}
		}
		return nil
	})
	return counts, err
}

func replay(prov shard.Layout, w int, router *shard.Router, buf *[]byte) (int64, error) {
	entries, err := segment.LoadIndex(prov.IndexPath(w))
	if err != nil {
		return 0, err
	}
	dr, err := segment.OpenDataReader(prov.DataPath(w), codec.Work)
	if err != nil {
		return 0, err
	}
	defer dr.Close()

	for _, e := range entries {
		rec, err := dr.Read(e)
		if err != nil {
			return 0, err
		}
		*buf, err = codec.Work.Append((*buf)[:0], rec)
		if err != nil {
			return 0, err
		}
		if _, err := router.Append(e.ID, *buf); err != nil {
			return 0, err
		}
	}
	return int64(len(entries)), nil
}
