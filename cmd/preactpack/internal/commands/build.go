package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/preactpack/internal/assets"
	"github.com/wolfeidau/preactpack/internal/logger"
	"github.com/wolfeidau/preactpack/internal/plan"
)

type BuildCmd struct {
	Tracing bool `help:"enable tracing" default:"false" env:"PREACTPACK_TRACING"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Str("config", globals.Config).Msg("Starting build")

	defer setupTracing(ctx, c.Tracing, globals.Version)()

	s, p, err := load(globals, string(plan.Production))
	if err != nil {
		return err
	}

	pipeline, err := assets.New(s, p)
	if err != nil {
		return err
	}

	if err := pipeline.Clean(); err != nil {
		return err
	}

	out, err := pipeline.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	log.Info().Str("output", s.OutputDir()).Int("files", len(out.Files())).Msg("Build complete")
	return nil
}
