package assets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/settings"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int          `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// ParseMetadata decodes an esbuild metafile
func ParseMetadata(metafile string) (*BuildMetadata, error) {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	return &metadata, nil
}

// OutputPaths returns every output path in sorted order
func (m *BuildMetadata) OutputPaths() []string {
	paths := make([]string, 0, len(m.Outputs))
	for p := range m.Outputs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Build is the esbuild configuration the stages contribute to
type Build struct {
	Options  api.BuildOptions
	Settings *settings.Settings
	Env      plan.Environment
	// TempDir holds generated inputs such as the JSX shim, removed after the build
	TempDir string
}

// Output is what the emit hooks see once esbuild has run
type Output struct {
	Config   Config
	Plan     *plan.Plan
	Settings *settings.Settings
	Metadata *BuildMetadata
	Warnings []api.Message

	// Page assets resolved from the metafile for the entry point
	Scripts     []string
	Preloads    []string
	Styles      []string
	StyleFiles  []string
	HTMLPath    string
	emitted     map[string]bool
	emittedList []string
}

func newOutput(cfg Config, p *plan.Plan, s *settings.Settings, metadata *BuildMetadata, warnings []api.Message) *Output {
	out := &Output{
		Config:   cfg,
		Plan:     p,
		Settings: s,
		Metadata: metadata,
		Warnings: warnings,
		HTMLPath: filepath.Join(cfg.OutputDir, "index.html"),
		emitted:  map[string]bool{},
	}
	for _, path := range metadata.OutputPaths() {
		out.markEmitted(cfg.abs(path))
	}
	return out
}

// markEmitted records a file written during this build
func (o *Output) markEmitted(path string) {
	if !o.emitted[path] {
		o.emitted[path] = true
		o.emittedList = append(o.emittedList, path)
	}
}

// Emitted reports whether path was written by this build
func (o *Output) Emitted(path string) bool {
	return o.emitted[path]
}

// Files returns the files written by this build in the order they were written
func (o *Output) Files() []string {
	return slices.Clone(o.emittedList)
}

// loadScripts resolves the entry point's script, its chunk imports and its
// stylesheet from the metafile
func (o *Output) loadScripts() error {
	entry := o.Config.rel(o.Config.Entry)

	for _, outputPath := range o.Metadata.OutputPaths() {
		info := o.Metadata.Outputs[outputPath]
		if info.EntryPoint != entry || !strings.HasSuffix(outputPath, ".js") {
			continue
		}

		o.Scripts = []string{o.Config.url(outputPath)}
		visited := map[string]bool{outputPath: true}
		o.addDependencies(info, visited)

		if info.CSSBundle != "" {
			o.Styles = append(o.Styles, o.Config.url(info.CSSBundle))
			o.StyleFiles = append(o.StyleFiles, o.Config.abs(info.CSSBundle))
		}
		return nil
	}

	return errors.New("entrypoint not found in metadata")
}

func (o *Output) addDependencies(output OutputInfo, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.Kind != "" && imp.Kind != "import-statement" {
			continue
		}
		if !visited[imp.Path] {
			visited[imp.Path] = true
			o.Preloads = append(o.Preloads, o.Config.url(imp.Path))

			if chunkInfo, exists := o.Metadata.Outputs[imp.Path]; exists {
				o.addDependencies(chunkInfo, visited)
			}
		}
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}
