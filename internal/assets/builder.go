package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/settings"
	"github.com/wolfeidau/preactpack/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wolfeidau/preactpack/internal/assets"

// Pipeline executes a resolved build plan with esbuild
type Pipeline struct {
	config   Config
	settings *settings.Settings
	plan     *plan.Plan
	handlers map[string]Handler
	tracer   trace.Tracer
	// serialises emits, watch mode calls back from esbuild's goroutines
	mu sync.Mutex
}

// New creates a pipeline for the plan, every stage in it must have a handler
func New(s *settings.Settings, p *plan.Plan) (*Pipeline, error) {
	hs := handlers()
	for _, name := range p.Names() {
		if _, ok := hs[name]; !ok {
			return nil, fmt.Errorf("no handler for stage %q", name)
		}
	}

	return &Pipeline{
		config:   ConfigFromSettings(s),
		settings: s,
		plan:     p,
		handlers: hs,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Options runs every stage's Configure hook in plan order and returns the
// resulting esbuild options. Generated inputs are written to tempDir.
func (p *Pipeline) Options(tempDir string) (api.BuildOptions, error) {
	b := &Build{
		Settings: p.settings,
		Env:      p.plan.Environment(),
		TempDir:  tempDir,
		Options: api.BuildOptions{
			AbsWorkingDir: p.config.Root,
			Outdir:        p.config.OutputDir,
			LogLevel:      api.LogLevelSilent,
		},
	}

	for _, stage := range p.plan.Stages() {
		if err := p.handlers[stage.Name].Configure(b, stage.Params); err != nil {
			return api.BuildOptions{}, &StageError{Stage: stage.Name, Err: err}
		}
	}

	return b.Options, nil
}

// Clean removes and recreates the output directory
func (p *Pipeline) Clean() error {
	if err := os.RemoveAll(p.config.OutputDir); err != nil {
		return fmt.Errorf("failed to clean output directory: %w", err)
	}
	return os.MkdirAll(p.config.OutputDir, 0o755)
}

// Build runs esbuild once and then every stage's Emit hook
func (p *Pipeline) Build(ctx context.Context) (*Output, error) {
	ctx, span := p.startBuild(ctx)
	defer span.End()
	started := time.Now()

	tempDir, err := os.MkdirTemp("", "preactpack-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	opts, err := p.Options(tempDir)
	if err != nil {
		return nil, p.finish(ctx, span, started, err)
	}

	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return nil, p.finish(ctx, span, started, err)
	}

	zerolog.Ctx(ctx).Info().Strs("entrypoints", opts.EntryPoints).Strs("stages", p.plan.Names()).Msg("Building assets")

	result := api.Build(opts)
	out, err := p.emit(ctx, result)
	return out, p.finish(ctx, span, started, err)
}

// Watch builds, then rebuilds whenever an input changes, calling onBuild after
// each build's emit hooks have run. It returns when ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, onBuild func(*Output, error)) error {
	tempDir, err := os.MkdirTemp("", "preactpack-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	opts, err := p.Options(tempDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return err
	}

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "preactpack-emit",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				buildCtx, span := p.startBuild(ctx)
				defer span.End()
				started := time.Now()

				out, err := p.emit(buildCtx, *result)
				err = p.finish(buildCtx, span, started, err)
				if onBuild != nil {
					onBuild(out, err)
				}
				return api.OnEndResult{}, nil
			})
		},
	})

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return fmt.Errorf("failed to create build context: %s", messages(cerr.Errors))
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to watch: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("root", p.config.Root).Msg("Watching for changes")

	<-ctx.Done()
	return nil
}

func (p *Pipeline) emit(ctx context.Context, result api.BuildResult) (*Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := zerolog.Ctx(ctx)

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			event := log.Error().Str("error", msg.Text)
			if msg.Location != nil {
				event = event.Str("file", msg.Location.File).Int("line", msg.Location.Line)
			}
			event.Msg("Build error")
		}
		return nil, errors.New("esbuild failed with errors")
	}

	// Write metafile
	if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
		return nil, err
	}

	metadata, err := ParseMetadata(result.Metafile)
	if err != nil {
		return nil, err
	}

	for _, path := range metadata.OutputPaths() {
		log.Debug().Str("file", path).Msg("Built file")
	}

	out := newOutput(p.config, p.plan, p.settings, metadata, result.Warnings)

	for _, stage := range p.plan.Stages() {
		stageCtx, span := p.tracer.Start(ctx, "stage "+stage.Name,
			trace.WithAttributes(attribute.String("preactpack.stage", stage.Name)))

		err := p.handlers[stage.Name].Emit(stageCtx, out, stage.Params)
		telemetry.GetMetrics().StagesExecutedTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", stage.Name)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, &StageError{Stage: stage.Name, Err: err}
		}
		span.End()
	}

	return out, nil
}

func (p *Pipeline) startBuild(ctx context.Context) (context.Context, trace.Span) {
	buildID := uuid.NewString()
	env := string(p.plan.Environment())

	logger := zerolog.Ctx(ctx).With().Str("build_id", buildID).Str("env", env).Logger()
	ctx = logger.WithContext(ctx)

	return p.tracer.Start(ctx, "build",
		trace.WithAttributes(
			attribute.String("preactpack.build_id", buildID),
			attribute.String("preactpack.env", env),
		))
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, started time.Time, err error) error {
	elapsed := time.Since(started)
	attrs := metric.WithAttributes(attribute.String("env", string(p.plan.Environment())))
	m := telemetry.GetMetrics()
	m.BuildDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if err != nil {
		m.BuildErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zerolog.Ctx(ctx).Error().Err(err).Dur("duration", elapsed).Msg("Build failed")
		return err
	}

	zerolog.Ctx(ctx).Info().Dur("duration", elapsed).Msg("Build finished")
	return nil
}

func messages(msgs []api.Message) string {
	if len(msgs) == 0 {
		return "unknown error"
	}
	return msgs[0].Text
}
