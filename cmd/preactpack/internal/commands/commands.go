package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/resolver"
	"github.com/wolfeidau/preactpack/internal/settings"
	"github.com/wolfeidau/preactpack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	Config  string
	Stdout  io.Writer
}

// load reads the settings file and resolves the plan for env
func load(globals *Globals, env string) (*settings.Settings, *plan.Plan, error) {
	s, err := settings.LoadFile(globals.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	p, err := resolver.Resolve(s, env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	return s, p, nil
}

// setupTracing starts telemetry when enabled, the returned func flushes it
func setupTracing(ctx context.Context, enabled bool, version string) func() {
	log := zerolog.Ctx(ctx)
	if !enabled {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, "preactpack", version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without tracing")
		shutdown = telemetry.Noop
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
