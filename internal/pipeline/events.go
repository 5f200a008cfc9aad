package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/resilience"
)

// Stage names used in events, spans and metrics.
const (
	StageRun     = "run"
	StageExtract = "extract"
	StageReshard = "reshard"
	StageSort    = "sort"
	StageAuthors = "authors"
	StageVerify  = "verify"
)

// Event statuses.
const (
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// StageEvent reports the progress of one stage, or of one bucket within a
// stage when Bucket is not negative.
type StageEvent struct {
	RunID      string        `json:"run_id"`
	Stage      string        `json:"stage"`
	Kind       string        `json:"kind,omitempty"`
	Bucket     int           `json:"bucket"`
	Status     string        `json:"status"`
	Path       string        `json:"path,omitempty"`
	Records    int64         `json:"records"`
	Skipped    int64         `json:"skipped,omitempty"`
	Duplicates int           `json:"duplicates,omitempty"`
	MinID      uint64        `json:"min_id,omitempty"`
	MaxID      uint64        `json:"max_id,omitempty"`
	Bytes      int64         `json:"bytes,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Error      string        `json:"error,omitempty"`
	Time       time.Time     `json:"time"`
}

func (e StageEvent) key() string {
	if e.Bucket >= 0 {
		return fmt.Sprintf("%s/%s/%s/%d", e.RunID, e.Stage, e.Kind, e.Bucket)
	}
	return fmt.Sprintf("%s/%s/%s", e.RunID, e.Stage, e.Kind)
}

// EventSink receives stage events. Publish errors are logged by the
// builder and never fail a stage.
type EventSink interface {
	Publish(ctx context.Context, ev StageEvent) error
}

// LogSink writes every event to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(_ context.Context, ev StageEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"run_id", ev.RunID, "stage", ev.Stage, "status", ev.Status}
	if ev.Kind != "" {
		attrs = append(attrs, "kind", ev.Kind)
	}
	if ev.Bucket >= 0 {
		attrs = append(attrs, "bucket", ev.Bucket)
	}
	if ev.Status != StatusStarted {
		attrs = append(attrs, "records", ev.Records, "duration", ev.Duration)
	}
	switch {
	case ev.Status == StatusFailed:
		logger.Error("stage event", append(attrs, "error", ev.Error)...)
	case ev.Bucket >= 0:
		logger.Debug("stage event", attrs...)
	default:
		logger.Info("stage event", attrs...)
	}
	return nil
}

type eventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaSink publishes events to the build-events topic, keyed by run, stage,
// kind and bucket. Each event is retried; after three events in a row fail
// the sink stops trying for a while so the build is not slowed down by an
// unreachable broker.
type KafkaSink struct {
	producer eventPublisher
	retry    resilience.RetryConfig
	breaker  *resilience.Breaker
}

func NewKafkaSink(p eventPublisher) *KafkaSink {
	return &KafkaSink{
		producer: p,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			Permanent:    resilience.IsContextError,
		},
		breaker: resilience.NewBreaker("kafka-sink", 3, 30*time.Second),
	}
}

func (s *KafkaSink) Publish(ctx context.Context, ev StageEvent) error {
	return s.breaker.Do(func() error {
		return resilience.Retry(ctx, "publish stage event", s.retry, func() error {
			return s.producer.Publish(ctx, kafka.Event{Key: ev.key(), Value: ev})
		})
	})
}

// MultiSink fans an event out to every sink and returns the first error.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, ev StageEvent) error {
	var firstErr error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
