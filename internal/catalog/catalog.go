// Package catalog declares every build stage the bundler knows about, when each
// one applies, and the parameters it starts from.
package catalog

import (
	"slices"

	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/settings"
)

// Stage names.
const (
	ScriptTransform       = "script-transform"
	StylePipeline         = "style-pipeline"
	AssetPipeline         = "asset-pipeline"
	FontPassthrough       = "font-passthrough"
	EnvInjection          = "env-injection"
	LintGate              = "lint-gate"
	HTMLEmit              = "html-emit"
	StaticCopy            = "static-copy"
	IconGeneration        = "icon-generation"
	DevServer             = "dev-server"
	SourceMap             = "source-map"
	Minification          = "minification"
	CodeSplitting         = "code-splitting"
	ServiceWorker         = "service-worker"
	CriticalCSSExtraction = "critical-css-extraction"
)

// Applicability says which environments a stage runs in.
type Applicability int

const (
	Always Applicability = iota
	DevelopmentOnly
	ProductionOnly
)

func (a Applicability) String() string {
	switch a {
	case Always:
		return "always"
	case DevelopmentOnly:
		return "development-only"
	case ProductionOnly:
		return "production-only"
	default:
		return "unknown"
	}
}

// AppliesTo reports whether a stage with this applicability runs in env.
func (a Applicability) AppliesTo(env plan.Environment) bool {
	switch a {
	case Always:
		return true
	case DevelopmentOnly:
		return env == plan.Development
	case ProductionOnly:
		return env == plan.Production
	}
	return false
}

// Descriptor declares a stage.
type Descriptor struct {
	Name          string
	Applicability Applicability
	// Order positions the stage in a plan; ties keep declaration order.
	Order int
	// Requires lists the settings keys the stage reads, see settings.Settings.Has.
	Requires []string
	// Output describes what the stage contributes to the build.
	Output string
	// Defaults returns the baseline parameters for the given settings.
	Defaults func(s *settings.Settings) plan.Params
	// Overlays replace default parameters per environment, key by key.
	Overlays map[plan.Environment]plan.Params
}

// AllStages returns the catalog sorted by Order, ties broken by declaration
// order. Every call returns a fresh slice in the same order.
func AllStages() []Descriptor {
	stages := declared()
	slices.SortStableFunc(stages, func(a, b Descriptor) int {
		return a.Order - b.Order
	})
	return stages
}

// Lookup returns the named descriptor.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range declared() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

func declared() []Descriptor {
	return []Descriptor{
		{
			Name:          ScriptTransform,
			Applicability: Always,
			Order:         10,
			Requires:      []string{"entry", "aliases"},
			Output:        "bundled javascript modules",
			Defaults: func(s *settings.Settings) plan.Params {
				return plan.Params{
					"entry":       s.Entry(),
					"aliases":     aliasMap(s),
					"target":      "es2017",
					"jsxFactory":  "h",
					"jsxFragment": "Fragment",
				}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Development: {"target": "esnext"},
			},
		},
		{
			Name:          StylePipeline,
			Applicability: Always,
			Order:         20,
			Output:        "stylesheets, extracted to files or injected into the page",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"mode": "extract", "minify": false}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Development: {"mode": "inject"},
				plan.Production:  {"mode": "extract", "minify": true},
			},
		},
		{
			Name:          AssetPipeline,
			Applicability: Always,
			Order:         30,
			Requires:      []string{"images"},
			Output:        "fingerprinted images and a responsive variant manifest",
			Defaults: func(s *settings.Settings) plan.Params {
				img := s.Images()
				return plan.Params{
					"sizes":           img.Sizes,
					"placeholderSize": img.PlaceholderSize,
					"quality":         img.Quality,
					"outputPath":      img.OutputPath,
					"format":          "original",
				}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Production: {"format": "webp"},
			},
		},
		{
			Name:          FontPassthrough,
			Applicability: Always,
			Order:         30,
			Output:        "font files copied with fingerprinted names",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"extensions": []string{".woff", ".woff2", ".ttf", ".eot", ".otf"}}
			},
		},
		{
			Name:          EnvInjection,
			Applicability: Always,
			Order:         5,
			Output:        "compile time process.env definitions",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"env": "", "envFileSuffix": "", "prefix": "PREACT_APP_"}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Development: {"env": "development", "envFileSuffix": "development"},
				plan.Production:  {"env": "production", "envFileSuffix": "production"},
			},
		},
		{
			Name:          LintGate,
			Applicability: Always,
			Order:         40,
			Output:        "advisory diagnostics, never fails the build",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"advisory": true}
			},
		},
		{
			Name:          HTMLEmit,
			Applicability: Always,
			Order:         60,
			Requires:      []string{"htmlTemplate", "projectName"},
			Output:        "index.html referencing the emitted scripts and styles",
			Defaults: func(s *settings.Settings) plan.Params {
				return plan.Params{
					"template":    s.HTMLTemplate(),
					"title":       s.Name(),
					"description": s.Description(),
				}
			},
		},
		{
			Name:          StaticCopy,
			Applicability: Always,
			Order:         60,
			Requires:      []string{"publicDir", "outputDir"},
			Output:        "public directory copied into the output directory",
			Defaults: func(s *settings.Settings) plan.Params {
				return plan.Params{
					"from":    s.PublicDir(),
					"to":      s.OutputDir(),
					"exclude": []string{".DS_Store"},
				}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Production: {"exclude": []string{".DS_Store", "*.map", "*.psd", "*.md"}},
			},
		},
		{
			Name:          IconGeneration,
			Applicability: Always,
			Order:         60,
			Requires:      []string{"favicon", "projectName"},
			Output:        "favicon and web app manifest",
			Defaults: func(s *settings.Settings) plan.Params {
				return plan.Params{"favicon": s.Favicon(), "name": s.Name()}
			},
		},
		{
			Name:          DevServer,
			Applicability: DevelopmentOnly,
			Order:         90,
			Requires:      []string{"devServerPort", "devServerProxy"},
			Output:        "http server with proxying and live reload",
			Defaults: func(s *settings.Settings) plan.Params {
				ds := s.DevServer()
				proxy := make([]map[string]string, 0, len(ds.Proxy))
				for _, rule := range ds.Proxy {
					proxy = append(proxy, map[string]string{"prefix": rule.Prefix, "target": rule.Target})
				}
				return plan.Params{
					"port":  ds.Port,
					"proxy": proxy,
					"host":  "localhost",
					"hot":   false,
				}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Development: {"hot": true},
			},
		},
		{
			Name:          SourceMap,
			Applicability: Always,
			Order:         15,
			Output:        "source maps",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"kind": "separate-file"}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Development: {"kind": "eval-inline"},
				plan.Production:  {"kind": "separate-file"},
			},
		},
		{
			Name:          Minification,
			Applicability: ProductionOnly,
			Order:         50,
			Output:        "minified scripts, optionally precompressed",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"dropDebug": false, "precompress": false}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Production: {"dropDebug": true, "precompress": true},
			},
		},
		{
			Name:          CodeSplitting,
			Applicability: ProductionOnly,
			Order:         50,
			Output:        "shared chunks split out of the entry bundle",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"strategy": "none"}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Production: {"strategy": "all"},
			},
		},
		{
			Name:          ServiceWorker,
			Applicability: ProductionOnly,
			Order:         80,
			Output:        "sw.js precaching every emitted file",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"filename": "sw.js", "clientsClaim": false, "skipWaiting": false}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Production: {"clientsClaim": true, "skipWaiting": true},
			},
		},
		{
			Name:          CriticalCSSExtraction,
			Applicability: ProductionOnly,
			Order:         70,
			Output:        "critical styles inlined into the document head",
			Defaults: func(*settings.Settings) plan.Params {
				return plan.Params{"viewports": []string{"1300x900"}}
			},
			Overlays: map[plan.Environment]plan.Params{
				plan.Production: {"viewports": []string{"375x667", "1300x900"}},
			},
		},
	}
}

func aliasMap(s *settings.Settings) map[string]string {
	aliases := s.Aliases()
	m := make(map[string]string, len(aliases))
	for _, a := range aliases {
		m[a.Name] = a.Path
	}
	return m
}
