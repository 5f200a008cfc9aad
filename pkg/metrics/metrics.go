// Package metrics defines the Prometheus metric collectors used by the build
// pipeline and the lookup path, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// Metrics holds all Prometheus collectors for the store.
type Metrics struct {
	RecordsExtractedTotal *prometheus.CounterVec
	RecordsSkippedTotal   *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	BucketRecords         *prometheus.GaugeVec
	DuplicateIDsTotal     *prometheus.CounterVec
	AuthorTableSize       prometheus.Gauge
	LookupsTotal          *prometheus.CounterVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the Prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RecordsExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_extracted_total",
				Help: "Total records written to provisional or canonical data files, by entity kind.",
			},
			[]string{"kind"},
		),
		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_skipped_total",
				Help: "Total source lines skipped during extraction, by entity kind and reason.",
			},
			[]string{"kind", "reason"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stage_duration_seconds",
				Help:    "Wall time of pipeline stages in seconds.",
				Buckets: []float64{0.1, 1, 10, 60, 300, 900, 3600, 10800},
			},
			[]string{"stage", "kind"},
		),
		BucketRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bucket_records",
				Help: "Number of entries in each finalized sorted index.",
			},
			[]string{"kind", "bucket"},
		),
		DuplicateIDsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duplicate_ids_total",
				Help: "Index entries dropped at sort time because a later entry had the same id.",
			},
			[]string{"kind"},
		),
		AuthorTableSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "author_table_size",
				Help: "Distinct authors collected from work records.",
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookups_total",
				Help: "Point lookups by entity kind and result (found, not_found, error).",
			},
			[]string{"kind", "result"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "record_cache_hits_total",
				Help: "Total number of record cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "record_cache_misses_total",
				Help: "Total number of record cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.RecordsExtractedTotal,
		m.RecordsSkippedTotal,
		m.StageDuration,
		m.BucketRecords,
		m.DuplicateIDsTotal,
		m.AuthorTableSize,
		m.LookupsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// ObserveStage records the duration of a stage that started at start.
func (m *Metrics) ObserveStage(stage, kind string, start time.Time) {
	m.StageDuration.WithLabelValues(stage, kind).Observe(time.Since(start).Seconds())
}

// SetBucketRecords records the final entry count of one sorted index.
func (m *Metrics) SetBucketRecords(kind string, bucket int, n int) {
	m.BucketRecords.WithLabelValues(kind, strconv.Itoa(bucket)).Set(float64(n))
}

// ObserveLookup counts one point lookup by its outcome. Whether a cache
// answered it is tracked by the cache counters, not here.
func (m *Metrics) ObserveLookup(kind string, err error) {
	result := "found"
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	m.LookupsTotal.WithLabelValues(kind, result).Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
