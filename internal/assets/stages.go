package assets

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/catalog"
	"github.com/wolfeidau/preactpack/internal/plan"
)

// Handler turns one plan stage into bundler work. Configure runs for every stage
// before esbuild, Emit runs for every stage after it, both in plan order.
type Handler interface {
	Configure(b *Build, params plan.Params) error
	Emit(ctx context.Context, out *Output, params plan.Params) error
}

// StageError wraps a failure with the stage that produced it
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// handlers maps every catalog stage to its implementation
func handlers() map[string]Handler {
	return map[string]Handler{
		catalog.EnvInjection:          envInjection{},
		catalog.ScriptTransform:       scriptTransform{},
		catalog.SourceMap:             sourceMap{},
		catalog.StylePipeline:         stylePipeline{},
		catalog.AssetPipeline:         assetPipeline{},
		catalog.FontPassthrough:       fontPassthrough{},
		catalog.LintGate:              lintGate{},
		catalog.Minification:          minification{},
		catalog.CodeSplitting:         codeSplitting{},
		catalog.HTMLEmit:              htmlEmit{},
		catalog.StaticCopy:            staticCopy{},
		catalog.IconGeneration:        iconGeneration{},
		catalog.CriticalCSSExtraction: criticalCSS{},
		catalog.ServiceWorker:         serviceWorker{},
		catalog.DevServer:             devServer{},
	}
}

// configureOnly is embedded by stages with nothing to do after the bundle
type configureOnly struct{}

func (configureOnly) Emit(context.Context, *Output, plan.Params) error { return nil }

// emitOnly is embedded by stages that do not change the esbuild options
type emitOnly struct{}

func (emitOnly) Configure(*Build, plan.Params) error { return nil }

type envInjection struct{ configureOnly }

func (envInjection) Configure(b *Build, params plan.Params) error {
	if b.Options.Define == nil {
		b.Options.Define = map[string]string{}
	}

	env := params.String("env")
	b.Options.Define["process.env.NODE_ENV"] = strconv.Quote(env)

	files := []string{".env"}
	if suffix := params.String("envFileSuffix"); suffix != "" {
		files = append(files, ".env."+suffix)
	}

	for i, name := range files {
		files[i] = filepath.Join(b.Settings.Root(), name)
	}
	vars, err := LoadEnvFiles(files...)
	if err != nil {
		return err
	}

	prefix := params.String("prefix")
	for key, value := range vars {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		b.Options.Define["process.env."+key] = strconv.Quote(value)
	}

	return nil
}

// builtinAliases route react imports to preact's compatibility layer
var builtinAliases = map[string]string{
	"react":             "preact/compat",
	"react-dom":         "preact/compat",
	"react/jsx-runtime": "preact/jsx-runtime",
}

const jsxShim = "export { h, Fragment } from \"preact\";\n"

type scriptTransform struct{ configureOnly }

func (scriptTransform) Configure(b *Build, params plan.Params) error {
	target, err := parseTarget(params.String("target"))
	if err != nil {
		return err
	}

	o := &b.Options
	o.EntryPoints = []string{params.String("entry")}
	o.Bundle = true
	o.Write = true
	o.Metafile = true
	o.Format = api.FormatESModule
	o.Target = target
	o.TreeShaking = api.TreeShakingTrue
	o.JSX = api.JSXTransform
	o.JSXFactory = params.String("jsxFactory")
	o.JSXFragment = params.String("jsxFragment")
	o.EntryNames = cond(b.Env == plan.Production, "[name]-[hash]", "[name]")

	o.Alias = maps.Clone(builtinAliases)
	maps.Copy(o.Alias, params.StringMap("aliases"))

	if o.Loader == nil {
		o.Loader = map[string]api.Loader{}
	}
	o.Loader[".js"] = api.LoaderJSX

	// the factory and fragment must be in scope in every module without an import
	shim := filepath.Join(b.TempDir, "jsx-shim.js")
	if err := os.WriteFile(shim, []byte(jsxShim), 0600); err != nil {
		return fmt.Errorf("failed to write jsx shim: %w", err)
	}
	o.Inject = append(o.Inject, shim)
	// the shim lives outside the project, its preact import resolves from the project's modules
	o.NodePaths = append(o.NodePaths, filepath.Join(b.Settings.Root(), "node_modules"))

	return nil
}

func parseTarget(target string) (api.Target, error) {
	switch target {
	case "es2015":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2020":
		return api.ES2020, nil
	case "esnext", "":
		return api.ESNext, nil
	}
	return api.DefaultTarget, fmt.Errorf("unsupported target %q", target)
}

type sourceMap struct{ configureOnly }

func (sourceMap) Configure(b *Build, params plan.Params) error {
	switch kind := params.String("kind"); kind {
	case "eval-inline":
		b.Options.Sourcemap = api.SourceMapInline
	case "separate-file":
		b.Options.Sourcemap = api.SourceMapLinked
	case "none":
		b.Options.Sourcemap = api.SourceMapNone
	default:
		return fmt.Errorf("unsupported source map kind %q", kind)
	}
	return nil
}

type stylePipeline struct{ configureOnly }

func (stylePipeline) Configure(b *Build, params plan.Params) error {
	switch mode := params.String("mode"); mode {
	case "extract", "inject":
	default:
		return fmt.Errorf("unsupported style mode %q", mode)
	}

	if b.Options.Loader == nil {
		b.Options.Loader = map[string]api.Loader{}
	}
	b.Options.Loader[".css"] = api.LoaderCSS
	b.Options.Loader[".module.css"] = api.LoaderLocalCSS

	// esbuild minification flags apply to the whole bundle
	if params.Bool("minify") {
		b.Options.MinifyWhitespace = true
		b.Options.MinifySyntax = true
	}
	return nil
}

type fontPassthrough struct{ configureOnly }

func (fontPassthrough) Configure(b *Build, params plan.Params) error {
	if b.Options.Loader == nil {
		b.Options.Loader = map[string]api.Loader{}
	}
	for _, ext := range params.Strings("extensions") {
		b.Options.Loader[ext] = api.LoaderFile
	}
	b.Options.AssetNames = "assets/[name]-[hash]"
	return nil
}

type lintGate struct{ emitOnly }

func (lintGate) Emit(ctx context.Context, out *Output, _ plan.Params) error {
	log := zerolog.Ctx(ctx)
	for _, msg := range out.Warnings {
		event := log.Warn().Str("stage", catalog.LintGate).Str("warning", msg.Text)
		if msg.Location != nil {
			event = event.Str("file", msg.Location.File).Int("line", msg.Location.Line)
		}
		event.Msg("Advisory finding")
	}
	return nil
}

type minification struct{}

func (minification) Configure(b *Build, params plan.Params) error {
	b.Options.MinifyWhitespace = true
	b.Options.MinifyIdentifiers = true
	b.Options.MinifySyntax = true
	if params.Bool("dropDebug") {
		b.Options.Drop = api.DropConsole | api.DropDebugger
	}
	return nil
}

func (minification) Emit(ctx context.Context, out *Output, params plan.Params) error {
	if !params.Bool("precompress") {
		return nil
	}
	for _, path := range out.Metadata.OutputPaths() {
		ext := filepath.Ext(path)
		if ext != ".js" && ext != ".css" {
			continue
		}
		gz, err := Precompress(out.Config.abs(path))
		if err != nil {
			return err
		}
		out.markEmitted(gz)
		zerolog.Ctx(ctx).Debug().Str("file", gz).Msg("Precompressed")
	}
	return nil
}

type codeSplitting struct{ configureOnly }

func (codeSplitting) Configure(b *Build, params plan.Params) error {
	switch strategy := params.String("strategy"); strategy {
	case "all":
		b.Options.Splitting = true
		b.Options.ChunkNames = "chunks/[name]-[hash]"
	case "none":
		b.Options.Splitting = false
	default:
		return fmt.Errorf("unsupported split strategy %q", strategy)
	}
	return nil
}

// devServer contributes nothing to the bundle, the serve command runs it
type devServer struct {
	emitOnly
	configureOnly
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
