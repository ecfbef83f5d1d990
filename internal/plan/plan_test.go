package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvironment_Valid(t *testing.T) {
	require.True(t, Development.Valid())
	require.True(t, Production.Valid())
	require.False(t, Environment("staging").Valid())
	require.False(t, Environment("").Valid())
}

func TestPlan_isImmutable(t *testing.T) {
	input := []Stage{
		{Name: "source-map", Params: Params{"kind": "eval-inline"}},
		{Name: "asset-pipeline", Params: Params{"sizes": []int{300, 600}}},
	}
	p := New(Development, input)

	// mutate the constructor argument
	input[0].Name = "changed"
	input[1].Params["sizes"].([]int)[0] = 1

	// mutate a returned copy
	stages := p.Stages()
	stages[0].Params["kind"] = "separate-file"

	s, ok := p.Stage("asset-pipeline")
	require.True(t, ok)
	s.Params["sizes"].([]int)[1] = 2

	require.Equal(t, []string{"source-map", "asset-pipeline"}, p.Names())
	got, _ := p.Stage("source-map")
	require.Equal(t, "eval-inline", got.Params.String("kind"))
	got, _ = p.Stage("asset-pipeline")
	require.Equal(t, []int{300, 600}, got.Params.Ints("sizes"))
}

func TestPlan_lookup(t *testing.T) {
	p := New(Production, []Stage{{Name: "minification", Params: Params{"dropDebug": true}}})

	require.Equal(t, Production, p.Environment())
	require.True(t, p.Has("minification"))
	require.False(t, p.Has("dev-server"))

	_, ok := p.Stage("dev-server")
	require.False(t, ok)
}

func TestParams_Overlay(t *testing.T) {
	base := Params{
		"exclude": []string{"*.map", ".DS_Store"},
		"proxy":   map[string]string{"/api": "http://a"},
		"hot":     true,
	}
	overlay := Params{
		"exclude": []string{"*.psd"},
		"host":    "0.0.0.0",
	}

	merged := base.Overlay(overlay)

	require.Equal(t, Params{
		"exclude": []string{"*.psd"},
		"proxy":   map[string]string{"/api": "http://a"},
		"hot":     true,
		"host":    "0.0.0.0",
	}, merged)
	// base untouched
	require.Equal(t, []string{"*.map", ".DS_Store"}, base.Strings("exclude"))
	require.NotContains(t, base, "host")
}

func TestParams_accessors(t *testing.T) {
	p := Params{
		"s":  "x",
		"b":  true,
		"i":  3,
		"is": []int{1, 2},
		"ss": []string{"a"},
		"m":  map[string]string{"k": "v"},
		"ms": []map[string]string{{"k": "v"}},
	}

	require.Equal(t, "x", p.String("s"))
	require.True(t, p.Bool("b"))
	require.Equal(t, 3, p.Int("i"))
	require.Equal(t, []int{1, 2}, p.Ints("is"))
	require.Equal(t, []string{"a"}, p.Strings("ss"))
	require.Equal(t, map[string]string{"k": "v"}, p.StringMap("m"))
	require.Equal(t, []map[string]string{{"k": "v"}}, p.StringMaps("ms"))

	require.Empty(t, p.String("missing"))
	require.False(t, p.Bool("s"))
	require.Nil(t, p.StringMaps("missing"))
}

func TestPlan_Document(t *testing.T) {
	p := New(Development, []Stage{{Name: "dev-server", Params: Params{"port": 3000}}})

	data, err := json.Marshal(p.Document())
	require.NoError(t, err)
	require.JSONEq(t, `{"environment":"development","stages":[{"name":"dev-server","params":{"port":3000}}]}`, string(data))
}
