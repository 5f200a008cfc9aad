package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/metrics"
)

type appState struct {
	cfg         *config.Config
	metrics     *metrics.Metrics
	metricsSrv  *metrics.Server
}

func main() {
	state := &appState{}
	app := &cli.App{
		Name:  "graphstore",
		Usage: "build and query the OpenAlex flat-file record store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"AGS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return apperrors.Newf(apperrors.ErrInvalidInput, "load config", "%v", err)
			}
			if lvl := c.String("log-level"); lvl != "" {
				cfg.Logging.Level = lvl
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			state.cfg = cfg
			state.metrics = metrics.New(nil)
			if cfg.Metrics.Enabled {
				srv, err := metrics.Serve(cfg.Metrics.Port)
				if err != nil {
					return err
				}
				state.metricsSrv = srv
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if state.metricsSrv == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return state.metricsSrv.Shutdown(ctx)
		},
		Commands: []*cli.Command{
			buildCommand(state),
			sortCommand(state),
			verifyCommand(state),
			lookupCommand(state),
			fingerprintCommand(state),
			runsCommand(state),
			eventsCommand(state),
			healthCommand(state),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("graphstore failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(apperrors.ExitCode(err))
	}
}
