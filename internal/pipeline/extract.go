package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

const ctxCheckInterval = 4096

var errFiltered = apperrors.New(apperrors.ErrMalformedRecord, "filter work", "rejected by title filter")

// ExtractStats counts what an extract stage did with its input.
type ExtractStats struct {
	Files   int
	Lines   int64
	Records int64
	Skipped int64
}

type extractCounters struct {
	files   atomic.Int64
	lines   atomic.Int64
	records atomic.Int64
	skipped atomic.Int64
}

func (c *extractCounters) stats() ExtractStats {
	return ExtractStats{
		Files:   int(c.files.Load()),
		Lines:   c.lines.Load(),
		Records: c.records.Load(),
		Skipped: c.skipped.Load(),
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, source.ErrNoPublicationYear):
		return "no_year"
	case errors.Is(err, source.ErrLineTooLong):
		return "too_long"
	case errors.Is(err, errFiltered):
		return "filtered"
	case errors.Is(err, apperrors.ErrCapacity):
		return "capacity"
	default:
		return "malformed"
	}
}

func (b *Builder) skip(ctx context.Context, kind entity.Kind, r *source.Reader, err error, c *extractCounters) {
	reason := skipReason(err)
	c.skipped.Add(1)
	b.metrics.RecordsSkippedTotal.WithLabelValues(string(kind), reason).Inc()
	attrs := []any{"kind", kind, "file", r.Path(), "line", r.LineNumber(), "reason", reason, "error", err}
	if reason == "no_year" || reason == "filtered" {
		b.log(ctx).Debug("line skipped", attrs...)
		return
	}
	b.log(ctx).Warn("line skipped", attrs...)
}

// ExtractWorks parses every works file with a pool of workers. Worker w
// appends to its own provisional pair work-{data,index}-w, so no file is
// shared between goroutines; the author names of accepted works go into
// authors. Bad lines are skipped; I/O errors abort the stage.
func (b *Builder) ExtractWorks(ctx context.Context, files []string, authors *AuthorTable) (ExtractStats, error) {
	var counters extractCounters
	err := b.stage(ctx, StageExtract, entity.KindWork, func(ctx context.Context, ev *StageEvent) error {
		layout := b.provisionalLayout()
		if err := os.MkdirAll(layout.Dir, 0o755); err != nil {
			return fmt.Errorf("creating provisional dir: %w", err)
		}
		stale, err := layout.Existing()
		if err != nil {
			return err
		}
		for _, w := range stale {
			if err := layout.Remove(w); err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		jobs := make(chan string)
		g.Go(func() error {
			defer close(jobs)
			for _, f := range files {
				if err := gctx.Err(); err != nil {
					return err
				}
				select {
				case jobs <- f:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
		for w := 0; w < b.workers; w++ {
			g.Go(func() error {
				pair, err := segment.CreatePair(layout.DataPath(w), layout.IndexPath(w))
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				var buf []byte
				for path := range jobs {
					if err := b.extractWorkFile(gctx, path, pair, authors, &counters, &buf); err != nil {
						pair.Close()
						return fmt.Errorf("worker %d: %w", w, err)
					}
				}
				return pair.Close()
			})
		}
		err = g.Wait()

		b.metrics.AuthorTableSize.Set(float64(authors.Len()))
		st := counters.stats()
		ev.Records, ev.Skipped = st.Records, st.Skipped
		return err
	})
	return counters.stats(), err
}

func (b *Builder) extractWorkFile(ctx context.Context, path string, pair *segment.Pair, authors *AuthorTable, c *extractCounters, buf *[]byte) error {
	r, err := source.Open(path, b.maxLineBytes)
	if err != nil {
		return err
	}
	defer r.Close()
	b.log(ctx).Debug("extracting file", "file", path)

	var records int64
	for r.Next() {
		lines := c.lines.Add(1)
		if lines%ctxCheckInterval == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.LineErr(); err != nil {
			b.skip(ctx, entity.KindWork, r, err, c)
			continue
		}
		w, named, err := source.ParseWork(r.Line())
		if err == nil && !b.filter.Accept(w.Title) {
			err = errFiltered
		}
		if err == nil {
			*buf, err = codec.Work.Append((*buf)[:0], w)
		}
		if err != nil {
			if apperrors.IsRecoverable(err) {
				b.skip(ctx, entity.KindWork, r, err, c)
				continue
			}
			return err
		}
		if _, err := pair.Append(w.ID, *buf); err != nil {
			return fmt.Errorf("writing work %d: %w", w.ID, err)
		}
		for _, a := range named {
			authors.Insert(a.ID, a.Name)
		}
		records++
	}
	if err := r.Err(); err != nil {
		return err
	}
	c.files.Add(1)
	c.records.Add(records)
	b.metrics.RecordsExtractedTotal.WithLabelValues(string(entity.KindWork)).Add(float64(records))
	return nil
}

// ExtractUnsharded extracts concepts or venues with a single writer straight
// into the kind's canonical data and index file.
func (b *Builder) ExtractUnsharded(ctx context.Context, kind entity.Kind, files []string) (ExtractStats, error) {
	switch kind {
	case entity.KindConcept:
		return extractInto(ctx, b, codec.Concept, source.ParseConcept, files)
	case entity.KindVenue:
		return extractInto(ctx, b, codec.Venue, source.ParseVenue, files)
	default:
		return ExtractStats{}, apperrors.Newf(apperrors.ErrInvalidInput, "extract", "%s is not an unsharded source kind", kind)
	}
}

func extractInto[T any](ctx context.Context, b *Builder, c codec.Codec[T], parse func([]byte) (T, error), files []string) (ExtractStats, error) {
	var counters extractCounters
	kind := c.Kind()
	err := b.stage(ctx, StageExtract, kind, func(ctx context.Context, ev *StageEvent) error {
		layout := b.StoreLayout(kind)
		pair, err := segment.CreatePair(layout.DataPath(0), layout.IndexPath(0))
		if err != nil {
			return err
		}
		var buf []byte
		for _, path := range files {
			if err := extractFile(ctx, b, c, parse, path, pair, &counters, &buf); err != nil {
				pair.Close()
				return err
			}
		}
		st := counters.stats()
		ev.Records, ev.Skipped, ev.Bytes = st.Records, st.Skipped, pair.Size()
		return pair.Close()
	})
	return counters.stats(), err
}

func extractFile[T any](ctx context.Context, b *Builder, c codec.Codec[T], parse func([]byte) (T, error), path string, pair *segment.Pair, counters *extractCounters, buf *[]byte) error {
	r, err := source.Open(path, b.maxLineBytes)
	if err != nil {
		return err
	}
	defer r.Close()

	kind := c.Kind()
	var records int64
	for r.Next() {
		lines := counters.lines.Add(1)
		if lines%ctxCheckInterval == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.LineErr(); err != nil {
			b.skip(ctx, kind, r, err, counters)
			continue
		}
		rec, err := parse(r.Line())
		if err == nil {
			*buf, err = c.Append((*buf)[:0], rec)
		}
		if err != nil {
			if apperrors.IsRecoverable(err) {
				b.skip(ctx, kind, r, err, counters)
				continue
			}
			return err
		}
		if _, err := pair.Append(c.ID(rec), *buf); err != nil {
			return fmt.Errorf("writing %s %d: %w", kind, c.ID(rec), err)
		}
		records++
	}
	if err := r.Err(); err != nil {
		return err
	}
	counters.files.Add(1)
	counters.records.Add(records)
	b.metrics.RecordsExtractedTotal.WithLabelValues(string(kind)).Add(float64(records))
	return nil
}
