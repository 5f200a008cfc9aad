package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/segment"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/metrics"
)

// writeVenues builds a sorted single-bucket venue store.
func writeVenues(t *testing.T, layout shard.Layout, venues ...entity.Venue) {
	t.Helper()
	p, err := segment.CreatePair(layout.DataPath(0), layout.IndexPath(0))
	require.NoError(t, err)
	for _, v := range venues {
		data, err := codec.Encode(codec.Venue, v)
		require.NoError(t, err)
		_, err = p.Append(v.ID, data)
		require.NoError(t, err)
	}
	require.NoError(t, p.Close())
	_, err = segment.SortIndex(layout.IndexPath(0), layout.SortedIndexPath(0))
	require.NoError(t, err)
}

func TestResolveID(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		text     string
		wantKind entity.Kind
		wantID   uint64
		wantErr  error
	}{
		{name: "url infers kind", text: "https://openalex.org/W2741809807", wantKind: entity.KindWork, wantID: 2741809807},
		{name: "short form", text: "A42", wantKind: entity.KindAuthor, wantID: 42},
		{name: "numeric with kind", kind: "venue", text: "9", wantKind: entity.KindVenue, wantID: 9},
		{name: "explicit kind wins", kind: "author", text: "W42", wantKind: entity.KindAuthor, wantID: 42},
		{name: "numeric without kind", text: "9", wantErr: apperrors.ErrInvalidInput},
		{name: "no id", text: "https://openalex.org/", wantErr: apperrors.ErrInvalidInput},
		{name: "unknown letter", text: "I12", wantErr: apperrors.ErrInvalidInput},
		{name: "unknown kind", kind: "institution", text: "W1", wantErr: apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, err := resolveID(tt.kind, tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 2, apperrors.ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestCompareFingerprints(t *testing.T) {
	state := testState(t)
	here := storeLayout(state, entity.KindVenue)
	writeVenues(t, here, entity.Venue{ID: 1, Name: "Nature"}, entity.Venue{ID: 2, Name: "Science"})

	same := here
	same.Dir = t.TempDir()
	writeVenues(t, same, entity.Venue{ID: 2, Name: "Science"}, entity.Venue{ID: 1, Name: "Nature"})

	other := here
	other.Dir = t.TempDir()
	writeVenues(t, other, entity.Venue{ID: 2, Name: "Science"}, entity.Venue{ID: 3, Name: "Cell"})

	renamed := here
	renamed.Dir = t.TempDir()
	writeVenues(t, renamed, entity.Venue{ID: 1, Name: "Nature"}, entity.Venue{ID: 2, Name: "Science Advances"})

	local, err := fingerprintAt(here)
	require.NoError(t, err)

	fp, err := fingerprintAt(same)
	require.NoError(t, err)
	var out bytes.Buffer
	assert.True(t, compareFingerprints(&out, local, fp))
	assert.Contains(t, out.String(), "identical")

	fp, err = fingerprintAt(other)
	require.NoError(t, err)
	out.Reset()
	assert.False(t, compareFingerprints(&out, local, fp))
	assert.Contains(t, out.String(), "only here:    1 [1]")
	assert.Contains(t, out.String(), "only against: 1 [3]")

	fp, err = fingerprintAt(renamed)
	require.NoError(t, err)
	out.Reset()
	assert.False(t, compareFingerprints(&out, local, fp))
	assert.Contains(t, out.String(), "same ids, record contents differ")
}

func TestFormatIDsTruncates(t *testing.T) {
	assert.Equal(t, "[]", formatIDs(nil))
	assert.Equal(t, "[4 5]", formatIDs([]uint64{4, 5}))
	ids := make([]uint64, 12)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	assert.Equal(t, "[1 2 3 4 5 6 7 8 9 10 ...]", formatIDs(ids))
}

func TestWriteRun(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(time.Hour)
	run := &catalog.Run{RunID: "r1", Status: "succeeded", StartedAt: started, FinishedAt: &finished, Records: 3, Skipped: 1}
	files := []catalog.File{{Kind: "venue", Bucket: 0, Entries: 3, MinID: 1, MaxID: 9, DataBytes: 120}}

	var out bytes.Buffer
	writeRun(&out, run, files)
	assert.Contains(t, out.String(), "run r1 succeeded started=2024-05-01T10:00:00Z finished=2024-05-01T11:00:00Z records=3 skipped=1")
	assert.Contains(t, out.String(), "KIND")
	assert.Contains(t, out.String(), "venue")

	out.Reset()
	writeRun(&out, &catalog.Run{RunID: "r2", Status: "failed", StartedAt: started, Error: "disk full"}, nil)
	assert.Contains(t, out.String(), "finished=-")
	assert.Contains(t, out.String(), "error: disk full")
	assert.NotContains(t, out.String(), "KIND")
}

func TestUncachedLookupCountsOutcome(t *testing.T) {
	state := testState(t)
	state.metrics = metrics.New(prometheus.NewRegistry())
	writeVenues(t, storeLayout(state, entity.KindVenue), entity.Venue{ID: 9, Name: "Nature"})
	ctx := context.Background()

	rec, err := lookup(ctx, state, entity.KindVenue, 9)
	require.NoError(t, err)
	assert.Equal(t, entity.Venue{ID: 9, Name: "Nature"}, rec)

	_, err = lookup(ctx, state, entity.KindVenue, 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(state.metrics.LookupsTotal.WithLabelValues("venue", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(state.metrics.LookupsTotal.WithLabelValues("venue", "not_found")))
}
