// Package settings holds the validated, immutable project settings that every
// build plan is resolved from.
package settings

import (
	"maps"
	"net/url"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

const (
	DefaultSourceDir       = "src"
	DefaultPublicDir       = "public"
	DefaultOutputDir       = "build"
	DefaultEntry           = "src/index.js"
	DefaultHTMLTemplate    = "src/index.html"
	DefaultFavicon         = "src/assets/favicon.png"
	DefaultPort            = 8080
	DefaultPlaceholderSize = 20
	DefaultImageOutputPath = "assets/img/[name]-[width].[ext]"
	DefaultImageQuality    = 85
)

// DefaultImageSizes are the responsive widths derived when none are configured.
var DefaultImageSizes = []int{300, 600, 1200, 2000}

// reservedSpecifiers are import specifiers the script transform aliases itself.
var reservedSpecifiers = map[string]bool{
	"preact":             true,
	"preact/compat":      true,
	"preact/hooks":       true,
	"preact/jsx-runtime": true,
	"react":              true,
	"react-dom":          true,
	"react/jsx-runtime":  true,
}

// IsReservedSpecifier reports whether name is an import specifier owned by the
// script transform.
func IsReservedSpecifier(name string) bool {
	return reservedSpecifiers[name]
}

// ProxyRule forwards dev server requests under Prefix to Target.
type ProxyRule struct {
	Prefix string
	Target string
}

// DevServer holds the dev server settings.
type DevServer struct {
	Port  int
	Proxy []ProxyRule
}

// Images holds the responsive image parameters.
type Images struct {
	Sizes           []int
	PlaceholderSize int
	OutputPath      string
	Quality         int
}

// Settings is a validated project configuration. It is never mutated after Load
// and accessors return copies, so a single value can be shared by concurrent
// resolutions.
type Settings struct {
	root         string
	name         string
	description  string
	sourceDir    string
	publicDir    string
	outputDir    string
	entry        string
	htmlTemplate string
	favicon      string
	devServer    DevServer
	aliases      AliasTable
	images       Images
}

// Load validates raw and returns the resulting Settings. Paths are resolved to
// absolute paths but their existence is not checked.
func Load(raw Raw) (*Settings, error) {
	root := raw.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, invalid("root", raw.Root, "cannot be made absolute: %v", err)
	}

	if strings.TrimSpace(raw.Name) == "" {
		return nil, invalid("name", raw.Name, "must not be empty")
	}

	s := &Settings{
		root:        root,
		name:        raw.Name,
		description: raw.Description,
	}

	paths := []struct {
		field string
		value string
		def   string
		dst   *string
	}{
		{"sourceDir", raw.SourceDir, DefaultSourceDir, &s.sourceDir},
		{"publicDir", raw.PublicDir, DefaultPublicDir, &s.publicDir},
		{"outputDir", raw.OutputDir, DefaultOutputDir, &s.outputDir},
		{"entry", raw.Entry, DefaultEntry, &s.entry},
		{"htmlTemplate", raw.HTMLTemplate, DefaultHTMLTemplate, &s.htmlTemplate},
		{"favicon", raw.Favicon, DefaultFavicon, &s.favicon},
	}
	for _, p := range paths {
		value := cond(p.value == "", p.def, p.value)
		if strings.ContainsRune(value, 0) {
			return nil, invalid(p.field, p.value, "must be a valid path")
		}
		*p.dst = absPath(root, value)
	}

	if s.outputDir == root {
		return nil, invalid("outputDir", raw.OutputDir, "must not be the project root")
	}

	if s.devServer, err = loadDevServer(raw.DevServer); err != nil {
		return nil, err
	}
	if s.aliases, err = loadAliases(root, raw.Aliases); err != nil {
		return nil, err
	}
	if s.images, err = loadImages(raw.Images); err != nil {
		return nil, err
	}

	return s, nil
}

func loadDevServer(raw RawDevServer) (DevServer, error) {
	ds := DevServer{Port: cond(raw.Port == 0, DefaultPort, raw.Port)}
	if ds.Port < 1 || ds.Port > 65535 {
		return DevServer{}, invalid("devServer.port", raw.Port, "must be between 1 and 65535")
	}

	prefixes := slices.Sorted(maps.Keys(raw.Proxy))
	for _, prefix := range prefixes {
		target := raw.Proxy[prefix]
		field := "devServer.proxy[" + prefix + "]"
		if !strings.HasPrefix(prefix, "/") {
			return DevServer{}, invalid(field, prefix, "prefix must start with /")
		}
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return DevServer{}, invalid(field, target, "upstream must be an http or https origin")
		}
		ds.Proxy = append(ds.Proxy, ProxyRule{Prefix: prefix, Target: target})
	}

	// longest prefix first so the most specific rule matches
	sort.SliceStable(ds.Proxy, func(i, j int) bool {
		return len(ds.Proxy[i].Prefix) > len(ds.Proxy[j].Prefix)
	})

	return ds, nil
}

func loadAliases(root string, raw AliasTable) (AliasTable, error) {
	seen := make(map[string]bool, len(raw))
	table := make(AliasTable, 0, len(raw))
	for _, a := range raw {
		switch {
		case strings.TrimSpace(a.Name) == "":
			return nil, invalid("aliases", a.Name, "alias must not be empty")
		case strings.ContainsAny(a.Name, " \t\n"):
			return nil, invalid("aliases", a.Name, "alias must not contain whitespace")
		case seen[a.Name]:
			return nil, invalid("aliases", a.Name, "duplicate alias")
		case IsReservedSpecifier(a.Name):
			return nil, invalid("aliases", a.Name, "collides with a reserved import specifier")
		case a.Path == "":
			return nil, invalid("aliases["+a.Name+"]", a.Path, "path must not be empty")
		}
		seen[a.Name] = true
		table = append(table, Alias{Name: a.Name, Path: absPath(root, a.Path)})
	}
	return table, nil
}

func loadImages(raw RawImages) (Images, error) {
	img := Images{
		Sizes:           slices.Clone(raw.Sizes),
		PlaceholderSize: cond(raw.PlaceholderSize == 0, DefaultPlaceholderSize, raw.PlaceholderSize),
		OutputPath:      cond(raw.OutputPath == "", DefaultImageOutputPath, raw.OutputPath),
		Quality:         cond(raw.Quality == 0, DefaultImageQuality, raw.Quality),
	}
	if len(img.Sizes) == 0 {
		img.Sizes = slices.Clone(DefaultImageSizes)
	}

	for i, size := range img.Sizes {
		if size <= 0 {
			return Images{}, invalid("images.sizes", raw.Sizes, "widths must be positive")
		}
		if i > 0 && size <= img.Sizes[i-1] {
			return Images{}, invalid("images.sizes", raw.Sizes, "widths must be strictly increasing")
		}
	}
	if img.PlaceholderSize < 0 {
		return Images{}, invalid("images.placeholderSize", raw.PlaceholderSize, "must be positive")
	}
	if img.PlaceholderSize >= img.Sizes[0] {
		return Images{}, invalid("images.placeholderSize", img.PlaceholderSize,
			"must be smaller than the smallest target width (%d)", img.Sizes[0])
	}
	if img.Quality < 1 || img.Quality > 100 {
		return Images{}, invalid("images.quality", raw.Quality, "must be between 1 and 100")
	}

	return img, nil
}

// ResolveAlias returns the absolute path registered for name.
func (s *Settings) ResolveAlias(name string) (string, error) {
	for _, a := range s.aliases {
		if a.Name == name {
			return a.Path, nil
		}
	}
	return "", &UnknownAliasError{Name: name}
}

// Has reports whether key names a settings value that is present. Stages use
// it to declare the settings they depend on.
func (s *Settings) Has(key string) bool {
	switch key {
	case "name", "projectName":
		return s.name != ""
	case "description":
		return s.description != ""
	case "root":
		return s.root != ""
	case "sourceDir":
		return s.sourceDir != ""
	case "publicDir":
		return s.publicDir != ""
	case "outputDir":
		return s.outputDir != ""
	case "entry":
		return s.entry != ""
	case "htmlTemplate":
		return s.htmlTemplate != ""
	case "favicon":
		return s.favicon != ""
	case "devServerPort":
		return s.devServer.Port != 0
	case "devServerProxy", "aliases":
		// an empty table is still a declared table
		return true
	case "images":
		return len(s.images.Sizes) > 0
	}
	return false
}

func (s *Settings) Root() string         { return s.root }
func (s *Settings) Name() string         { return s.name }
func (s *Settings) Description() string  { return s.description }
func (s *Settings) SourceDir() string    { return s.sourceDir }
func (s *Settings) PublicDir() string    { return s.publicDir }
func (s *Settings) OutputDir() string    { return s.outputDir }
func (s *Settings) Entry() string        { return s.entry }
func (s *Settings) HTMLTemplate() string { return s.htmlTemplate }
func (s *Settings) Favicon() string      { return s.favicon }

// DevServer returns a copy of the dev server settings.
func (s *Settings) DevServer() DevServer {
	return DevServer{Port: s.devServer.Port, Proxy: slices.Clone(s.devServer.Proxy)}
}

// Aliases returns a copy of the alias table in declaration order.
func (s *Settings) Aliases() AliasTable {
	return slices.Clone(s.aliases)
}

// Images returns a copy of the image parameters.
func (s *Settings) Images() Images {
	img := s.images
	img.Sizes = slices.Clone(s.images.Sizes)
	return img
}

func absPath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
