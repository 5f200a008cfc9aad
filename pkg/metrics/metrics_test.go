package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

func TestNewRegistersOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsExtractedTotal.WithLabelValues("work").Add(3)
	m.RecordsSkippedTotal.WithLabelValues("work", "filtered").Inc()
	m.SetBucketRecords("work", 5, 42)
	m.ObserveStage("sort", "work", time.Now())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsExtractedTotal.WithLabelValues("work")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.BucketRecords.WithLabelValues("work", "5")))

	// A second set of collectors on a fresh registry must not panic.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestObserveLookupLabelsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLookup("work", nil)
	m.ObserveLookup("work", nil)
	m.ObserveLookup("work", apperrors.New(apperrors.ErrNotFound, "lookup", "id 9"))
	m.ObserveLookup("work", apperrors.New(apperrors.ErrIntegrity, "lookup", "id 10"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("work", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("work", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("work", "error")))
}
