package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/cache"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/redis"
)

var allKinds = []entity.Kind{entity.KindWork, entity.KindAuthor, entity.KindConcept, entity.KindVenue}

var kindFlag = &cli.StringFlag{
	Name:  "kind",
	Usage: "entity kind: work, author, concept or venue",
}

// parseKinds returns the kind named by --kind, or every kind that has files
// in the store directory.
func parseKinds(c *cli.Context, state *appState) ([]entity.Kind, error) {
	if !c.IsSet("kind") {
		var built []entity.Kind
		for _, k := range allKinds {
			buckets, err := storeLayout(state, k).Existing()
			if err != nil {
				return nil, err
			}
			if len(buckets) > 0 {
				built = append(built, k)
			}
		}
		return built, nil
	}
	k, err := entity.ParseKind(c.String("kind"))
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "parse flags", "%v", err)
	}
	return []entity.Kind{k}, nil
}

// newBuilder wires the builder to the sinks enabled in the config. The
// returned cleanup closes every connection it opened.
func newBuilder(ctx context.Context, state *appState) (*pipeline.Builder, func(), error) {
	cfg := state.cfg
	sinks := pipeline.MultiSink{pipeline.LogSink{}}
	var closers []func() error
	cleanup := func() {
		for _, fn := range closers {
			if err := fn(); err != nil {
				slog.Warn("cleanup failed", "error", err)
			}
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		closers = append(closers, producer.Close)
		sinks = append(sinks, pipeline.NewKafkaSink(producer))
	}
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		cat := catalog.New(db)
		if err := cat.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, cat)
	}

	b, err := pipeline.NewBuilder(cfg.Store, cfg.Build,
		pipeline.WithMetrics(state.metrics),
		pipeline.WithSink(sinks),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return b, cleanup, nil
}

func buildCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "extract, shard, sort and verify the store from the snapshot",
		Action: func(c *cli.Context) error {
			b, cleanup, err := newBuilder(c.Context, state)
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := b.Run(c.Context)
			if err != nil {
				return err
			}
			if state.cfg.Redis.Enabled {
				if err := invalidateCaches(c.Context, state, b); err != nil {
					slog.Warn("cache invalidation failed", "error", err)
				}
			}
			for _, k := range allKinds {
				if n, ok := sum.Verified[k]; ok {
					fmt.Fprintf(c.App.Writer, "%-8s %d records\n", k, n)
				}
			}
			fmt.Fprintf(c.App.Writer, "run %s finished in %s\n", sum.RunID, sum.Duration)
			return nil
		},
	}
}

func sortCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "sort",
		Usage: "rewrite the sorted index of existing data and index files",
		Flags: []cli.Flag{kindFlag},
		Action: func(c *cli.Context) error {
			kinds, err := parseKinds(c, state)
			if err != nil {
				return err
			}
			b, cleanup, err := newBuilder(c.Context, state)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, k := range kinds {
				stats, err := b.SortAll(c.Context, k)
				if err != nil {
					return err
				}
				var entries, dups int
				for _, st := range stats {
					entries += st.Entries
					dups += st.Duplicates
				}
				fmt.Fprintf(c.App.Writer, "%-8s %d entries, %d duplicates dropped\n", k, entries, dups)
			}
			return nil
		},
	}
}

func verifyCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check ordering, bucket placement and decodability of every entry",
		Flags: []cli.Flag{kindFlag},
		Action: func(c *cli.Context) error {
			kinds, err := parseKinds(c, state)
			if err != nil {
				return err
			}
			b, err := pipeline.NewBuilder(state.cfg.Store, state.cfg.Build, pipeline.WithMetrics(state.metrics))
			if err != nil {
				return err
			}
			for _, k := range kinds {
				n, err := b.Verify(c.Context, k)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%-8s %d entries ok\n", k, n)
			}
			return nil
		},
	}
}

func fingerprintCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "fingerprint",
		Usage: "print an offset-independent content fingerprint per kind",
		Flags: []cli.Flag{
			kindFlag,
			&cli.StringFlag{
				Name:  "against",
				Usage: "compare with the store built in this directory",
			},
		},
		Action: func(c *cli.Context) error {
			kinds, err := parseKinds(c, state)
			if err != nil {
				return err
			}
			against := c.String("against")
			var differ []string
			for _, k := range kinds {
				fp, err := fingerprintAt(storeLayout(state, k))
				if err != nil {
					return err
				}
				if against == "" {
					fmt.Fprintln(c.App.Writer, fp.String())
					continue
				}
				layout := storeLayout(state, k)
				layout.Dir = against
				other, err := fingerprintAt(layout)
				if err != nil {
					return err
				}
				if !compareFingerprints(c.App.Writer, fp, other) {
					differ = append(differ, string(k))
				}
			}
			if len(differ) > 0 {
				return fmt.Errorf("stores differ for %s", strings.Join(differ, ", "))
			}
			return nil
		},
	}
}

func fingerprintAt(layout shard.Layout) (store.Fingerprint, error) {
	r, err := store.OpenReader(layout)
	if err != nil {
		return store.Fingerprint{}, err
	}
	defer r.Close()
	return r.Fingerprint()
}

const maxListedIDs = 10

// compareFingerprints reports whether two stores of one kind hold the same
// records and prints the ids present on only one side.
func compareFingerprints(w io.Writer, local, other store.Fingerprint) bool {
	if local.Equal(other) {
		fmt.Fprintf(w, "%-8s identical: %s\n", local.Kind, local)
		return true
	}
	onlyLocal := local.Diff(other)
	onlyOther := other.Diff(local)
	fmt.Fprintf(w, "%-8s differs\n", local.Kind)
	fmt.Fprintf(w, "  here:    %s\n", local)
	fmt.Fprintf(w, "  against: %s\n", other)
	if len(onlyLocal) == 0 && len(onlyOther) == 0 {
		fmt.Fprintln(w, "  same ids, record contents differ")
		return false
	}
	fmt.Fprintf(w, "  only here:    %d %s\n", len(onlyLocal), formatIDs(onlyLocal))
	fmt.Fprintf(w, "  only against: %d %s\n", len(onlyOther), formatIDs(onlyOther))
	return false
}

func formatIDs(ids []uint64) string {
	if len(ids) == 0 {
		return "[]"
	}
	n := min(len(ids), maxListedIDs)
	parts := make([]string, n)
	for i, id := range ids[:n] {
		parts[i] = strconv.FormatUint(id, 10)
	}
	s := "[" + strings.Join(parts, " ")
	if len(ids) > n {
		s += " ..."
	}
	return s + "]"
}

func runsCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "show the latest build run and the files it recorded in the catalog",
		Action: func(c *cli.Context) error {
			if !state.cfg.Postgres.Enabled {
				return apperrors.New(apperrors.ErrInvalidInput, "runs", "postgres is not enabled in the config")
			}
			db, err := postgres.New(state.cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			cat := catalog.New(db)
			run, err := cat.LatestRun(c.Context)
			if err != nil {
				return err
			}
			if run == nil {
				fmt.Fprintln(c.App.Writer, "no runs recorded")
				return nil
			}
			files, err := cat.Files(c.Context, run.RunID)
			if err != nil {
				return err
			}
			writeRun(c.App.Writer, run, files)
			return nil
		},
	}
}

func writeRun(w io.Writer, run *catalog.Run, files []catalog.File) {
	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "run %s %s started=%s finished=%s records=%d skipped=%d\n",
		run.RunID, run.Status, run.StartedAt.Format(time.RFC3339), finished, run.Records, run.Skipped)
	if run.Error != "" {
		fmt.Fprintf(w, "error: %s\n", run.Error)
	}
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(w, "%-8s %6s %10s %6s %12s %12s %12s\n", "KIND", "BUCKET", "ENTRIES", "DUPS", "MIN_ID", "MAX_ID", "BYTES")
	for _, f := range files {
		fmt.Fprintf(w, "%-8s %6d %10d %6d %12d %12d %12d\n", f.Kind, f.Bucket, f.Entries, f.Duplicates, f.MinID, f.MaxID, f.DataBytes)
	}
}

func lookupCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "print the record stored under an id as JSON",
		ArgsUsage: "<id or https://openalex.org/W...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "entity kind; inferred from the id letter when omitted",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return apperrors.New(apperrors.ErrInvalidInput, "lookup", "expected exactly one id")
			}
			kind, id, err := resolveID(c.String("kind"), c.Args().First())
			if err != nil {
				return err
			}
			rec, err := lookup(c.Context, state, kind, id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func eventsCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "follow the build-events topic and print each stage event",
		Action: func(c *cli.Context) error {
			if !state.cfg.Kafka.Enabled {
				return apperrors.New(apperrors.ErrInvalidInput, "events", "kafka is not enabled in the config")
			}
			consumer := kafka.NewConsumer(state.cfg.Kafka, func(_ context.Context, _ []byte, value []byte) error {
				ev, err := kafka.DecodeJSON[pipeline.StageEvent](value)
				if err != nil {
					return err
				}
				bucket := "-"
				if ev.Bucket >= 0 {
					bucket = strconv.Itoa(ev.Bucket)
				}
				fmt.Fprintf(c.App.Writer, "%s %s %-8s %-8s %3s %-8s records=%d\n",
					ev.Time.Format("15:04:05"), ev.RunID, ev.Stage, ev.Kind, bucket, ev.Status, ev.Records)
				return nil
			})
			return consumer.Start(c.Context)
		},
	}
}

func storeLayout(state *appState, kind entity.Kind) shard.Layout {
	return shard.StoreLayout(state.cfg.Store.Dir, state.cfg.Store.Extension, kind, state.cfg.Store.WorkBuckets)
}

// resolveID accepts a bare number (which needs an explicit kind) or a
// textual OpenAlex id whose letter names the kind.
func resolveID(kindName, text string) (entity.Kind, uint64, error) {
	var kind entity.Kind
	if kindName != "" {
		k, err := entity.ParseKind(kindName)
		if err != nil {
			return "", 0, apperrors.Newf(apperrors.ErrInvalidInput, "lookup", "%v", err)
		}
		kind = k
	}
	if id, err := strconv.ParseUint(text, 10, 64); err == nil {
		if kind == "" {
			return "", 0, apperrors.New(apperrors.ErrInvalidInput, "lookup", "--kind is required for a numeric id")
		}
		return kind, id, nil
	}
	id := entity.ExtractID(text)
	if id == 0 {
		return "", 0, apperrors.Newf(apperrors.ErrInvalidInput, "lookup", "no numeric id in %q", text)
	}
	if kind == "" {
		k, err := entity.KindOf(text)
		if err != nil {
			return "", 0, apperrors.Newf(apperrors.ErrInvalidInput, "lookup", "%v", err)
		}
		kind = k
	}
	return kind, id, nil
}

func lookup(ctx context.Context, state *appState, kind entity.Kind, id uint64) (any, error) {
	layout := storeLayout(state, kind)
	if !state.cfg.Redis.Enabled {
		r, err := store.OpenReader(layout)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		rec, err := r.LookupAny(id)
		if state.metrics != nil {
			state.metrics.ObserveLookup(string(kind), err)
		}
		return rec, err
	}

	client, err := pkgredis.NewClient(state.cfg.Redis)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	switch kind {
	case entity.KindWork:
		return cachedLookup(ctx, state, client, layout, codec.Work, id)
	case entity.KindAuthor:
		return cachedLookup(ctx, state, client, layout, codec.Author, id)
	case entity.KindConcept:
		return cachedLookup(ctx, state, client, layout, codec.Concept, id)
	default:
		return cachedLookup(ctx, state, client, layout, codec.Venue, id)
	}
}

func cachedLookup[T any](ctx context.Context, state *appState, client *pkgredis.Client, layout shard.Layout, c codec.Codec[T], id uint64) (any, error) {
	s, err := store.Open(layout, c)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	rc := cache.New(client, s, state.cfg.Redis.CacheTTL, state.metrics)
	rec, hit, err := rc.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Debug("lookup served", "kind", layout.Kind, "id", id, "cache_hit", hit)
	return rec, nil
}

// invalidateCaches drops cached records of every kind after a rebuild.
func invalidateCaches(ctx context.Context, state *appState, b *pipeline.Builder) error {
	client, err := pkgredis.NewClient(state.cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()
	for _, k := range allKinds {
		n, err := cache.Invalidate(ctx, client, k)
		if err != nil {
			return err
		}
		slog.Info("cache invalidated", "kind", k, "keys_deleted", n, "run_id", b.RunID())
	}
	return nil
}
