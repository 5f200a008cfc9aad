package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// AuthorTable collects author names seen in work records. Extract workers
// insert concurrently; for any id the first inserted name wins and later
// names are ignored.
type AuthorTable struct {
	names sync.Map
	size  atomic.Int64
}

func NewAuthorTable() *AuthorTable {
	return &AuthorTable{}
}

// Insert stores name under id unless the id is already present. Id 0 and
// empty names are ignored. It reports whether the entry was added.
func (t *AuthorTable) Insert(id uint64, name string) bool {
	if id == 0 || name == "" {
		return false
	}
	if _, loaded := t.names.LoadOrStore(id, name); loaded {
		return false
	}
	t.size.Add(1)
	return true
}

func (t *AuthorTable) Len() int {
	return int(t.size.Load())
}

// Authors returns every entry ordered by id. It must not run concurrently
// with Insert.
func (t *AuthorTable) Authors() []entity.Author {
	out := make([]entity.Author, 0, t.Len())
	t.names.Range(func(k, v any) bool {
		out = append(out, entity.Author{ID: k.(uint64), Name: v.(string)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MaterializeAuthors writes every author of table into the author data and
// index file and sorts the index. It returns the number of authors written.
func (b *Builder) MaterializeAuthors(ctx context.Context, table *AuthorTable) (int, error) {
	var written int
	err := b.stage(ctx, StageAuthors, entity.KindAuthor, func(ctx context.Context, ev *StageEvent) error {
		layout := b.StoreLayout(entity.KindAuthor)
		pair, err := segment.CreatePair(layout.DataPath(0), layout.IndexPath(0))
		if err != nil {
			return err
		}
		var buf []byte
		for _, a := range table.Authors() {
			buf, err = codec.Author.Append(buf[:0], a)
			if err != nil {
				if apperrors.IsRecoverable(err) {
					b.metrics.RecordsSkippedTotal.WithLabelValues(string(entity.KindAuthor), "capacity").Inc()
					b.log(ctx).Warn("author skipped", "id", a.ID, "error", err)
					continue
				}
				pair.Close()
				return err
			}
			if _, err := pair.Append(a.ID, buf); err != nil {
				pair.Close()
				return fmt.Errorf("writing author %d: %w", a.ID, err)
			}
			written++
		}
		ev.Records, ev.Bytes = int64(written), pair.Size()
		if err := pair.Close(); err != nil {
			return err
		}
		b.metrics.RecordsExtractedTotal.WithLabelValues(string(entity.KindAuthor)).Add(float64(written))
		return nil
	})
	if err != nil {
		return written, err
	}
	_, err = b.SortAll(ctx, entity.KindAuthor)
	return written, err
}
