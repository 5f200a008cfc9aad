package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/redis"
)

const defaultCheckTimeout = 5 * time.Second

func healthCommand(state *appState) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check the store files and every enabled backend",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: defaultCheckTimeout,
				Usage: "per-check timeout",
			},
		},
		Action: func(c *cli.Context) error {
			report := newChecker(state).Run(c.Context, c.Duration("timeout"))
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Status == health.StatusDown {
				return fmt.Errorf("health: at least one component is down")
			}
			return nil
		},
	}
}

func newChecker(state *appState) *health.Checker {
	checker := health.NewChecker()
	for _, k := range allKinds {
		checker.Register("store:"+string(k), storeCheck(state, k))
	}
	cfg := state.cfg
	if cfg.Postgres.Enabled {
		checker.Register("postgres", health.Ping(func(ctx context.Context) error {
			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Ping(ctx)
		}))
	}
	if cfg.Redis.Enabled {
		checker.Register("redis", health.Ping(func(ctx context.Context) error {
			client, err := pkgredis.NewClient(cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()
			return client.Ping(ctx)
		}))
	}
	if cfg.Kafka.Enabled {
		checker.Register("kafka", health.Ping(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	}
	return checker
}

// storeCheck reports a kind as degraded when it was never built and as down
// when only some of its bucket files are present.
func storeCheck(state *appState, kind entity.Kind) health.Check {
	return func(context.Context) health.ComponentHealth {
		layout := storeLayout(state, kind)
		buckets, err := layout.Existing()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		if len(buckets) == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not built"}
		}
		for b := 0; b < layout.Buckets; b++ {
			if _, err := os.Stat(layout.SortedIndexPath(b)); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: fmt.Sprintf("bucket %d has no sorted index", b)}
			}
		}
		r, err := store.OpenReader(layout)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		defer r.Close()
		var n int
		for b := 0; b < r.NumBuckets(); b++ {
			n += r.Len(b)
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d entries in %d buckets", n, r.NumBuckets())}
	}
}
