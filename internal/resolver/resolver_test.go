package resolver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/preactpack/internal/catalog"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/settings"
)

func minimalSettings(t *testing.T) *settings.Settings {
	t.Helper()
	s, err := settings.Load(settings.Raw{
		Root:      "/project",
		Name:      "my-app",
		Entry:     "src/index.js",
		DevServer: settings.RawDevServer{Port: 3000},
		Aliases:   settings.AliasTable{{Name: "@", Path: "src"}},
	})
	require.NoError(t, err)
	return s
}

func TestResolve_development(t *testing.T) {
	p, err := Resolve(minimalSettings(t), "development")
	require.NoError(t, err)

	require.Equal(t, plan.Development, p.Environment())

	devServer, ok := p.Stage(catalog.DevServer)
	require.True(t, ok)
	require.Equal(t, 3000, devServer.Params.Int("port"))
	require.True(t, devServer.Params.Bool("hot"))

	require.False(t, p.Has(catalog.Minification))
	require.False(t, p.Has(catalog.ServiceWorker))
	require.False(t, p.Has(catalog.CriticalCSSExtraction))
	require.False(t, p.Has(catalog.CodeSplitting))

	sourceMap, _ := p.Stage(catalog.SourceMap)
	require.Equal(t, "eval-inline", sourceMap.Params.String("kind"))
}

func TestResolve_production(t *testing.T) {
	p, err := Resolve(minimalSettings(t), "production")
	require.NoError(t, err)

	require.Equal(t, plan.Production, p.Environment())
	require.True(t, p.Has(catalog.Minification))
	require.True(t, p.Has(catalog.ServiceWorker))
	require.True(t, p.Has(catalog.CriticalCSSExtraction))
	require.False(t, p.Has(catalog.DevServer))

	sourceMap, _ := p.Stage(catalog.SourceMap)
	require.Equal(t, "separate-file", sourceMap.Params.String("kind"))

	sw, _ := p.Stage(catalog.ServiceWorker)
	require.True(t, sw.Params.Bool("clientsClaim"))
	require.True(t, sw.Params.Bool("skipWaiting"))
}

func TestResolve_unsupportedEnvironment(t *testing.T) {
	for _, tag := range []string{"staging", "", "Production", "dev"} {
		t.Run(tag, func(t *testing.T) {
			p, err := Resolve(minimalSettings(t), tag)
			require.Nil(t, p)
			require.ErrorIs(t, err, ErrUnsupportedEnvironment)

			var envErr *UnsupportedEnvironmentError
			require.ErrorAs(t, err, &envErr)
			require.Equal(t, tag, envErr.Tag)
		})
	}
}

func TestResolve_applicability(t *testing.T) {
	s := minimalSettings(t)

	for _, env := range plan.Environments() {
		p, err := Resolve(s, string(env))
		require.NoError(t, err)

		for _, d := range catalog.AllStages() {
			require.Equal(t, d.Applicability.AppliesTo(env), p.Has(d.Name), "%s in %s", d.Name, env)
		}
	}
}

func TestResolve_orderFollowsCatalog(t *testing.T) {
	s := minimalSettings(t)

	for _, env := range plan.Environments() {
		p, err := Resolve(s, string(env))
		require.NoError(t, err)

		var expected []string
		for _, d := range catalog.AllStages() {
			if d.Applicability.AppliesTo(env) {
				expected = append(expected, d.Name)
			}
		}
		require.Equal(t, expected, p.Names())
	}
}

func TestResolve_idempotent(t *testing.T) {
	s := minimalSettings(t)

	for _, env := range plan.Environments() {
		first, err := Resolve(s, string(env))
		require.NoError(t, err)
		second, err := Resolve(s, string(env))
		require.NoError(t, err)

		require.Equal(t, first.Document(), second.Document())
	}
}

func TestResolve_concurrent(t *testing.T) {
	s := minimalSettings(t)
	expected, err := Resolve(s, "production")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]plan.Document, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Resolve(s, "production")
			if err == nil {
				results[i] = p.Document()
			}
		}(i)
	}
	wg.Wait()

	for _, doc := range results {
		require.Equal(t, expected.Document(), doc)
	}
}

func TestResolve_overlayReplacesWholeValue(t *testing.T) {
	p, err := Resolve(minimalSettings(t), "production")
	require.NoError(t, err)

	static, _ := p.Stage(catalog.StaticCopy)
	require.Equal(t, []string{".DS_Store", "*.map", "*.psd", "*.md"}, static.Params.Strings("exclude"))
	require.Equal(t, "/project/public", static.Params.String("from"))

	style, _ := p.Stage(catalog.StylePipeline)
	require.Equal(t, "extract", style.Params.String("mode"))
	require.True(t, style.Params.Bool("minify"))
}

func TestResolve_neverMutatesPriorPlan(t *testing.T) {
	s := minimalSettings(t)
	first, err := Resolve(s, "development")
	require.NoError(t, err)
	before := first.Document()

	_, err = Resolve(s, "production")
	require.NoError(t, err)

	require.Equal(t, before, first.Document())
}

func TestResolve_missingSettings(t *testing.T) {
	_, err := Resolve(nil, "development")
	require.ErrorIs(t, err, settings.ErrValidation)

	_, err = Resolve(&settings.Settings{}, "development")
	require.ErrorIs(t, err, settings.ErrValidation)
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("production")
	require.NoError(t, err)
	require.Equal(t, plan.Production, env)

	_, err = ParseEnvironment("test")
	require.ErrorIs(t, err, ErrUnsupportedEnvironment)
}
