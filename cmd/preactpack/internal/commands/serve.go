package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/preactpack/internal/assets"
	"github.com/wolfeidau/preactpack/internal/devserver"
	"github.com/wolfeidau/preactpack/internal/logger"
	"github.com/wolfeidau/preactpack/internal/plan"
	"golang.org/x/sync/errgroup"
)

type ServeCmd struct {
	Tracing bool `help:"enable tracing" default:"false" env:"PREACTPACK_TRACING"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Str("config", globals.Config).Msg("Starting dev server")

	defer setupTracing(ctx, c.Tracing, globals.Version)()

	s, p, err := load(globals, string(plan.Development))
	if err != nil {
		return err
	}

	pipeline, err := assets.New(s, p)
	if err != nil {
		return err
	}

	cfg, err := devserver.ConfigFromPlan(s, p)
	if err != nil {
		return err
	}

	server, err := devserver.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Clean(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.Watch(ctx, func(out *assets.Output, err error) {
			if err != nil {
				// the failure is already logged, the browser keeps the last good build
				return
			}
			log.Info().Int("files", len(out.Files())).Msg("Rebuilt, reloading clients")
			server.Reload()
		})
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})

	return g.Wait()
}
