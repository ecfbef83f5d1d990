package assets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/preactpack/internal/catalog"
	"github.com/wolfeidau/preactpack/internal/plan"
)

func TestBuildAssetManifest(t *testing.T) {
	tp := newTestProject(t)
	metadata, err := ParseMetadata(testMetafile)
	require.NoError(t, err)
	cfg := ConfigFromSettings(tp.settings)

	params := plan.Params{
		"sizes":           []int{300, 600},
		"placeholderSize": 20,
		"quality":         85,
		"outputPath":      "assets/img/[name]-[width].[ext]",
		"format":          "webp",
	}

	manifest := BuildAssetManifest(cfg, metadata, params)
	require.Equal(t, AssetManifest{Images: []ImageEntry{
		{
			Source:      "build/assets/icon-KL12.svg",
			URL:         "/assets/icon-KL12.svg",
			Format:      "svg",
			Quality:     85,
			Placeholder: ImageVariant{Width: 20, Path: "assets/img/icon-KL12-20.svg"},
			Variants: []ImageVariant{
				{Width: 300, Path: "assets/img/icon-KL12-300.svg"},
				{Width: 600, Path: "assets/img/icon-KL12-600.svg"},
			},
		},
		{
			Source:      "build/assets/logo-IJ90.png",
			URL:         "/assets/logo-IJ90.png",
			Format:      "webp",
			Quality:     85,
			Placeholder: ImageVariant{Width: 20, Path: "assets/img/logo-IJ90-20.webp"},
			Variants: []ImageVariant{
				{Width: 300, Path: "assets/img/logo-IJ90-300.webp"},
				{Width: 600, Path: "assets/img/logo-IJ90-600.webp"},
			},
		},
	}}, manifest)

	params["format"] = "original"
	manifest = BuildAssetManifest(cfg, metadata, params)
	require.Equal(t, "png", manifest.Images[1].Format)
}

func TestAssetPipelineEmit(t *testing.T) {
	tp := newTestProject(t)
	p := tp.resolve(t, "development")
	out := tp.output(t, p)

	require.NoError(t, assetPipeline{}.Emit(context.Background(), out, stageParams(t, p, catalog.AssetPipeline)))

	dst := filepath.Join(tp.settings.OutputDir(), assetManifestName)
	require.True(t, out.Emitted(dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)

	var manifest AssetManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.Images, 2)
	require.Equal(t, "png", manifest.Images[1].Format)
	require.Len(t, manifest.Images[1].Variants, 4)
}
