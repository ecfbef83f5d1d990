package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/resolver"
	"github.com/wolfeidau/preactpack/internal/settings"
	"gopkg.in/yaml.v3"
)

const testConfig = `name: shop
entry: src/main.js
devServer:
  port: 3000
  proxy:
    /api: http://localhost:9000
aliases:
  "@components": src/components
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPlanCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	globals := &Globals{Config: writeConfig(t, "preact.config.yaml", testConfig), Stdout: &out}

	cmd := &PlanCmd{Env: "production", Format: "json"}
	require.NoError(t, cmd.Run(context.Background(), globals))

	var doc struct {
		Environment string `json:"environment"`
		Stages      []struct {
			Name   string         `json:"name"`
			Params map[string]any `json:"params"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))

	assert.Equal(t, "production", doc.Environment)
	require.NotEmpty(t, doc.Stages)
	assert.Equal(t, "env-injection", doc.Stages[0].Name)

	names := make([]string, 0, len(doc.Stages))
	for _, stage := range doc.Stages {
		names = append(names, stage.Name)
	}
	assert.Contains(t, names, "minification")
	assert.NotContains(t, names, "dev-server")
}

func TestPlanCmd_YAML(t *testing.T) {
	var out bytes.Buffer
	globals := &Globals{Config: writeConfig(t, "preact.config.yaml", testConfig), Stdout: &out}

	cmd := &PlanCmd{Env: "development", Format: "yaml"}
	require.NoError(t, cmd.Run(context.Background(), globals))

	var doc struct {
		Environment string `yaml:"environment"`
		Stages      []struct {
			Name   string         `yaml:"name"`
			Params map[string]any `yaml:"params"`
		} `yaml:"stages"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "development", doc.Environment)

	var devServer map[string]any
	for _, stage := range doc.Stages {
		if stage.Name == "dev-server" {
			devServer = stage.Params
		}
	}
	require.NotNil(t, devServer)
	assert.Equal(t, 3000, devServer["port"])
	assert.Equal(t, true, devServer["hot"])
}

func TestPlanCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		env     string
		errType error
	}{
		{
			name:    "unsupported environment",
			config:  testConfig,
			env:     "staging",
			errType: resolver.ErrUnsupportedEnvironment,
		},
		{
			name:    "invalid settings",
			config:  "name: shop\ndevServer:\n  port: 70000\n",
			env:     "development",
			errType: settings.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			globals := &Globals{Config: writeConfig(t, "preact.config.yaml", tt.config), Stdout: &out}

			err := (&PlanCmd{Env: tt.env, Format: "json"}).Run(context.Background(), globals)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.errType), "unexpected error: %v", err)
			require.Empty(t, out.String())
		})
	}
}

func TestPlanCmd_MissingConfig(t *testing.T) {
	globals := &Globals{Config: filepath.Join(t.TempDir(), "missing.yaml"), Stdout: &bytes.Buffer{}}

	err := (&PlanCmd{Env: "production", Format: "json"}).Run(context.Background(), globals)
	require.ErrorContains(t, err, "failed to load settings")
}

func TestStagesCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&StagesCmd{}).Run(&Globals{Stdout: &out}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 16)
	assert.True(t, strings.HasPrefix(lines[0], "ORDER"))
	assert.Contains(t, lines[1], "env-injection")
	assert.Contains(t, lines[len(lines)-1], "dev-server")
	assert.Contains(t, lines[len(lines)-1], "development-only")
}

func TestLoad(t *testing.T) {
	globals := &Globals{Config: writeConfig(t, "preact.config.json", `{
		// comments and trailing commas are allowed
		"name": "shop",
	}`)}

	s, p, err := load(globals, "development")
	require.NoError(t, err)
	assert.Equal(t, "shop", s.Name())
	assert.Equal(t, plan.Development, p.Environment())
	assert.Equal(t, filepath.Dir(globals.Config), s.Root())
}
