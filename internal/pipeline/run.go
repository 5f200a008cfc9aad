package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/tracing"
)

// Summary describes a finished build.
type Summary struct {
	RunID     string
	Extracted map[entity.Kind]ExtractStats
	Authors   int
	Verified  map[entity.Kind]int64
	Duration  time.Duration
}

// Run performs a complete build: works (extract, reshard, sort), authors,
// then concepts and venues, and finally verifies every kind it built. Kinds
// not listed in the build entities are left untouched.
func (b *Builder) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{
		RunID:     b.runID,
		Extracted: make(map[entity.Kind]ExtractStats),
		Verified:  make(map[entity.Kind]int64),
	}
	ctx, root := tracing.StartSpan(ctx, "build", b.runID)
	defer func() {
		root.End()
		root.Log()
	}()
	b.emit(ctx, StageEvent{Stage: StageRun, Bucket: -1, Status: StatusStarted})

	err := b.run(ctx, &sum)
	sum.Duration = time.Since(start)

	ev := StageEvent{Stage: StageRun, Bucket: -1, Status: StatusFinished, Duration: sum.Duration}
	for _, st := range sum.Extracted {
		ev.Records += st.Records
		ev.Skipped += st.Skipped
	}
	if err != nil {
		ev.Status = StatusFailed
		ev.Error = err.Error()
		root.SetAttr("error", err.Error())
	}
	b.emit(ctx, ev)
	return sum, err
}

func (b *Builder) run(ctx context.Context, sum *Summary) error {
	var built []entity.Kind

	if slices.Contains(b.entities, entity.KindWork) {
		files, err := source.Discover(b.snapshotDir, entity.KindWork)
		if err != nil {
			return err
		}
		authors := NewAuthorTable()
		st, err := b.ExtractWorks(ctx, files, authors)
		sum.Extracted[entity.KindWork] = st
		if err != nil {
			return err
		}
		if _, err := b.Reshard(ctx); err != nil {
			return err
		}
		if _, err := b.SortAll(ctx, entity.KindWork); err != nil {
			return err
		}
		if sum.Authors, err = b.MaterializeAuthors(ctx, authors); err != nil {
			return err
		}
		built = append(built, entity.KindWork, entity.KindAuthor)
	}

	for _, kind := range []entity.Kind{entity.KindConcept, entity.KindVenue} {
		if !slices.Contains(b.entities, kind) {
			continue
		}
		files, err := source.Discover(b.snapshotDir, kind)
		if err != nil {
			return err
		}
		st, err := b.ExtractUnsharded(ctx, kind, files)
		sum.Extracted[kind] = st
		if err != nil {
			return err
		}
		if _, err := b.SortAll(ctx, kind); err != nil {
			return err
		}
		built = append(built, kind)
	}

	for _, kind := range built {
		n, err := b.Verify(ctx, kind)
		sum.Verified[kind] = n
		if err != nil {
			return err
		}
	}
	return nil
}
