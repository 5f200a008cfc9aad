package catalog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/postgres"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "graphstore_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "graphstore"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping catalog test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPublishIgnoresOtherStages(t *testing.T) {
	c := &Catalog{}
	for _, ev := range []pipeline.StageEvent{
		{Stage: pipeline.StageExtract, Bucket: -1, Status: pipeline.StatusFinished},
		{Stage: pipeline.StageSort, Bucket: -1, Status: pipeline.StatusFinished},
		{Stage: pipeline.StageSort, Bucket: 3, Status: pipeline.StatusFailed},
		{Stage: pipeline.StageVerify, Bucket: 0, Status: pipeline.StatusFinished},
	} {
		assert.NoError(t, c.Publish(context.Background(), ev))
	}
}

func TestCatalogRecordsRun(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	c := New(db)
	require.NoError(t, c.Migrate(ctx))

	runID := fmt.Sprintf("catalog-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		db.DB.Exec(`DELETE FROM store_files WHERE run_id = $1`, runID)
		db.DB.Exec(`DELETE FROM build_runs WHERE run_id = $1`, runID)
	})
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, c.Publish(ctx, pipeline.StageEvent{
		RunID: runID, Stage: pipeline.StageRun, Bucket: -1, Status: pipeline.StatusStarted, Time: now,
	}))
	for b := 1; b >= 0; b-- {
		require.NoError(t, c.Publish(ctx, pipeline.StageEvent{
			RunID: runID, Stage: pipeline.StageSort, Kind: "work", Bucket: b, Status: pipeline.StatusFinished,
			Path: fmt.Sprintf("/s/work-data-%d.wjf", b), Records: 10, Duplicates: b,
			MinID: 2, MaxID: ^uint64(0) - 1, Bytes: 512, Time: now,
		}))
	}
	require.NoError(t, c.Publish(ctx, pipeline.StageEvent{
		RunID: runID, Stage: pipeline.StageRun, Bucket: -1, Status: pipeline.StatusFinished,
		Records: 20, Skipped: 3, Time: now.Add(time.Second),
	}))

	run, err := c.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, pipeline.StatusFinished, run.Status)
	assert.Equal(t, int64(20), run.Records)
	assert.Equal(t, int64(3), run.Skipped)
	require.NotNil(t, run.FinishedAt)
	assert.Empty(t, run.Error)

	files, err := c.Files(ctx, runID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 0, files[0].Bucket)
	assert.Equal(t, 1, files[1].Duplicates)
	assert.Equal(t, ^uint64(0)-1, files[1].MaxID)
	assert.Equal(t, "/s/work-data-1.wjf", files[1].DataPath)
}
