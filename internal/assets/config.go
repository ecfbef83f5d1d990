package assets

import (
	"path/filepath"

	"github.com/wolfeidau/preactpack/internal/settings"
)

type Config struct {
	// Project root, esbuild resolves and reports paths relative to it
	Root string
	// Output directory for built files
	OutputDir string
	// Path to metafile, written alongside the build output
	MetafilePath string
	// Entry module of the application
	Entry string
}

// ConfigFromSettings derives the pipeline configuration from project settings
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		Root:         s.Root(),
		OutputDir:    s.OutputDir(),
		MetafilePath: filepath.Join(s.OutputDir(), "meta.json"),
		Entry:        s.Entry(),
	}
}

// rel returns p relative to the project root using forward slashes, the form
// esbuild uses for metafile keys
func (c Config) rel(p string) string {
	r, err := filepath.Rel(c.Root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

// abs converts a metafile path back to an absolute path
func (c Config) abs(metaPath string) string {
	return filepath.Join(c.Root, filepath.FromSlash(metaPath))
}

// url returns the path a browser requests for a file in the output directory
func (c Config) url(metaPath string) string {
	r, err := filepath.Rel(c.OutputDir, c.abs(metaPath))
	if err != nil {
		return "/" + metaPath
	}
	return "/" + filepath.ToSlash(r)
}
