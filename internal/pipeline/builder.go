// Package pipeline builds the flat-file store from an OpenAlex snapshot.
//
// A build runs in stages: works are extracted by a pool of workers into
// worker-local provisional files, resharded into id-mod-N buckets and
// sorted; the author names collected on the way are materialized into the
// author store; concepts and venues are extracted by a single writer and
// sorted; finally every store is verified. Every stage recreates its outputs
// from scratch, so a failed build is rerun rather than resumed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/tracing"
)

// Builder drives the build stages. The stages of one Builder must not run
// concurrently with each other.
type Builder struct {
	storeDir        string
	ext             string
	workBuckets     int
	snapshotDir     string
	provisionalDir  string
	workers         int
	maxLineBytes    int
	keepProvisional bool
	entities        []entity.Kind

	filter  source.Filter
	metrics *metrics.Metrics
	sink    EventSink
	runID   string
	logger  *slog.Logger
}

type Option func(*Builder)

// WithFilter sets the filter applied to work titles. The default keeps every
// work.
func WithFilter(f source.Filter) Option {
	return func(b *Builder) { b.filter = f }
}

// WithMetrics sets the collectors the builder reports to. By default the
// builder registers its own collectors on a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithSink sets where stage events go. The default logs them.
func WithSink(s EventSink) Option {
	return func(b *Builder) { b.sink = s }
}

func WithRunID(id string) Option {
	return func(b *Builder) { b.runID = id }
}

func NewBuilder(storeCfg config.StoreConfig, buildCfg config.BuildConfig, opts ...Option) (*Builder, error) {
	if storeCfg.WorkBuckets <= 0 || buildCfg.Workers <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "new builder",
			"work buckets (%d) and workers (%d) must be positive", storeCfg.WorkBuckets, buildCfg.Workers)
	}
	b := &Builder{
		storeDir:        storeCfg.Dir,
		ext:             storeCfg.Extension,
		workBuckets:     storeCfg.WorkBuckets,
		snapshotDir:     buildCfg.SnapshotDir,
		provisionalDir:  buildCfg.ProvisionalDir,
		workers:         buildCfg.Workers,
		maxLineBytes:    buildCfg.MaxLineBytes,
		keepProvisional: buildCfg.KeepProvisional,
	}
	if b.maxLineBytes <= 0 {
		b.maxLineBytes = 64 << 20
	}
	for _, name := range buildCfg.Entities {
		k, err := entity.ParseKind(name)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "new builder", "%v", err)
		}
		if k == entity.KindAuthor {
			return nil, apperrors.New(apperrors.ErrInvalidInput, "new builder", "authors are built from works, not extracted")
		}
		b.entities = append(b.entities, k)
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.filter == nil {
		b.filter = source.AcceptAll
	}
	if b.metrics == nil {
		b.metrics = metrics.New(prometheus.NewRegistry())
	}
	if b.sink == nil {
		b.sink = LogSink{}
	}
	if b.runID == "" {
		b.runID = fmt.Sprintf("build-%d", time.Now().UnixNano())
	}
	b.logger = slog.Default().With("component", "pipeline", "run_id", b.runID)
	return b, nil
}

func (b *Builder) RunID() string {
	return b.runID
}

// StoreLayout returns the canonical file layout of kind.
func (b *Builder) StoreLayout(kind entity.Kind) shard.Layout {
	return shard.StoreLayout(b.storeDir, b.ext, kind, b.workBuckets)
}

func (b *Builder) provisionalLayout() shard.Layout {
	return shard.ProvisionalLayout(b.provisionalDir, b.ext, entity.KindWork, b.workers)
}

func (b *Builder) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx).With("component", "pipeline", "run_id", b.runID)
}

func (b *Builder) emit(ctx context.Context, ev StageEvent) {
	ev.RunID = b.runID
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if err := b.sink.Publish(ctx, ev); err != nil {
		b.log(ctx).Warn("publishing stage event failed", "stage", ev.Stage, "status", ev.Status, "error", err)
	}
}

// stage wraps fn with a span, start/finish events and the stage duration
// metric. fn fills in the counters of the finish event.
func (b *Builder) stage(ctx context.Context, name string, kind entity.Kind, fn func(ctx context.Context, ev *StageEvent) error) error {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, name)
	span.SetAttr("kind", string(kind))
	defer span.End()
	ctx = logger.WithStage(ctx, name)

	b.log(ctx).Info("stage started", "kind", kind)
	b.emit(ctx, StageEvent{Stage: name, Kind: string(kind), Bucket: -1, Status: StatusStarted})

	ev := StageEvent{Stage: name, Kind: string(kind), Bucket: -1}
	err := fn(ctx, &ev)
	ev.Duration = time.Since(start)
	b.metrics.ObserveStage(name, string(kind), start)
	span.SetAttr("records", ev.Records)

	if err != nil {
		ev.Status = StatusFailed
		ev.Error = err.Error()
		span.SetAttr("error", err.Error())
		b.emit(ctx, ev)
		b.log(ctx).Error("stage failed", "kind", kind, "duration", ev.Duration, "error", err)
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrStageFailed, name, kind, err)
	}
	ev.Status = StatusFinished
	b.emit(ctx, ev)
	b.log(ctx).Info("stage finished", "kind", kind, "records", ev.Records, "skipped", ev.Skipped, "duration", ev.Duration)
	return nil
}

// bucketEvent publishes the per-bucket finish event of a stage.
func (b *Builder) bucketEvent(ctx context.Context, ev StageEvent) {
	if ev.Status == "" {
		ev.Status = StatusFinished
	}
	b.emit(ctx, ev)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
