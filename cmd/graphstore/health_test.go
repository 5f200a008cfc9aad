package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/health"
)

func testState(t *testing.T) *appState {
	return &appState{cfg: &config.Config{
		Store: config.StoreConfig{Dir: t.TempDir(), Extension: "wjf", WorkBuckets: 4},
	}}
}

func TestStoreCheck(t *testing.T) {
	state := testState(t)
	ctx := context.Background()

	res := storeCheck(state, entity.KindVenue)(ctx)
	assert.Equal(t, health.StatusDegraded, res.Status)

	writeVenues(t, storeLayout(state, entity.KindVenue), entity.Venue{ID: 9, Name: "Nature"})

	res = storeCheck(state, entity.KindVenue)(ctx)
	assert.Equal(t, health.StatusUp, res.Status, res.Message)
	assert.Equal(t, "1 entries in 1 buckets", res.Message)

	work := storeLayout(state, entity.KindWork)
	require.NoError(t, os.WriteFile(work.DataPath(0), nil, 0o644))
	res = storeCheck(state, entity.KindWork)(ctx)
	assert.Equal(t, health.StatusDown, res.Status)
	assert.Equal(t, "bucket 0 has no sorted index", res.Message)
}

func TestCheckerSkipsDisabledBackends(t *testing.T) {
	report := newChecker(testState(t)).Run(context.Background(), defaultCheckTimeout)
	require.Len(t, report.Components, 4)
	assert.Equal(t, health.StatusDegraded, report.Status)
	for _, c := range report.Components {
		assert.Contains(t, c.Name, "store:")
	}
}
