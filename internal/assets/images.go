package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/plan"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg"}

const assetManifestName = "asset-manifest.json"

// ImageVariant is one responsive rendition an external codec has to produce
type ImageVariant struct {
	Width int    `json:"width"`
	Path  string `json:"path"`
}

// ImageEntry describes a fingerprinted image and its responsive renditions
type ImageEntry struct {
	Source      string         `json:"source"`
	URL         string         `json:"url"`
	Format      string         `json:"format"`
	Quality     int            `json:"quality"`
	Placeholder ImageVariant   `json:"placeholder"`
	Variants    []ImageVariant `json:"variants"`
}

type AssetManifest struct {
	Images []ImageEntry `json:"images"`
}

type assetPipeline struct{}

func (assetPipeline) Configure(b *Build, _ plan.Params) error {
	if b.Options.Loader == nil {
		b.Options.Loader = map[string]api.Loader{}
	}
	for _, ext := range imageExtensions {
		b.Options.Loader[ext] = api.LoaderFile
	}
	b.Options.AssetNames = "assets/[name]-[hash]"
	return nil
}

func (assetPipeline) Emit(ctx context.Context, out *Output, params plan.Params) error {
	manifest := BuildAssetManifest(out.Config, out.Metadata, params)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(out.Config.OutputDir, assetManifestName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write asset manifest: %w", err)
	}
	out.markEmitted(path)

	zerolog.Ctx(ctx).Debug().Int("images", len(manifest.Images)).Str("file", path).Msg("Wrote asset manifest")
	return nil
}

// BuildAssetManifest lists every image esbuild emitted along with the widths
// derived from the stage parameters
func BuildAssetManifest(cfg Config, metadata *BuildMetadata, params plan.Params) AssetManifest {
	manifest := AssetManifest{Images: []ImageEntry{}}

	format := params.String("format")
	pattern := params.String("outputPath")

	for _, outputPath := range metadata.OutputPaths() {
		ext := strings.ToLower(filepath.Ext(outputPath))
		if !isImage(ext) {
			continue
		}

		name := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
		outExt := strings.TrimPrefix(ext, ".")
		// vector images are never rasterised
		if format != "original" && format != "" && ext != ".svg" {
			outExt = format
		}

		entry := ImageEntry{
			Source:      outputPath,
			URL:         cfg.url(outputPath),
			Format:      outExt,
			Quality:     params.Int("quality"),
			Placeholder: variant(pattern, name, outExt, params.Int("placeholderSize")),
		}
		for _, width := range params.Ints("sizes") {
			entry.Variants = append(entry.Variants, variant(pattern, name, outExt, width))
		}
		manifest.Images = append(manifest.Images, entry)
	}

	return manifest
}

func variant(pattern, name, ext string, width int) ImageVariant {
	r := strings.NewReplacer("[name]", name, "[width]", strconv.Itoa(width), "[ext]", ext)
	return ImageVariant{Width: width, Path: r.Replace(pattern)}
}

func isImage(ext string) bool {
	return slices.Contains(imageExtensions, ext)
}
