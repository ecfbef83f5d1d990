package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // favicon dimensions
	_ "image/jpeg" // favicon dimensions
	_ "image/png"  // favicon dimensions
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/plan"
)

type staticCopy struct{ emitOnly }

func (staticCopy) Emit(ctx context.Context, out *Output, params plan.Params) error {
	log := zerolog.Ctx(ctx)

	copied, err := CopyStatic(params.String("from"), params.String("to"), params.Strings("exclude"), out.Emitted)
	if err != nil {
		return err
	}
	for _, f := range copied {
		out.markEmitted(f)
	}

	log.Debug().Int("files", len(copied)).Str("from", params.String("from")).Msg("Copied static files")
	return nil
}

// CopyStatic copies every file under from into to, skipping files whose name or
// relative path matches an exclude glob and files the build already produced.
// A missing source directory copies nothing.
func CopyStatic(from, to string, exclude []string, skip func(string) bool) ([]string, error) {
	if _, err := os.Stat(from); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var copied []string
	err := filepath.WalkDir(from, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(filepath.ToSlash(rel), exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		dst := filepath.Join(to, rel)
		if skip != nil && skip(dst) {
			return nil
		}
		if err := copyFile(p, dst); err != nil {
			return err
		}
		copied = append(copied, dst)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to copy static files: %w", err)
	}

	return copied, nil
}

func excluded(rel string, globs []string) bool {
	for _, glob := range globs {
		if ok, _ := path.Match(glob, rel); ok {
			return true
		}
		if ok, _ := path.Match(glob, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// WebManifest is the web app manifest written next to the page
type WebManifest struct {
	Name      string         `json:"name"`
	ShortName string         `json:"short_name"`
	StartURL  string         `json:"start_url"`
	Display   string         `json:"display"`
	Icons     []ManifestIcon `json:"icons"`
}

type ManifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes,omitempty"`
	Type  string `json:"type,omitempty"`
}

type iconGeneration struct{ emitOnly }

func (iconGeneration) Emit(ctx context.Context, out *Output, params plan.Params) error {
	log := zerolog.Ctx(ctx)

	manifest := WebManifest{
		Name:      params.String("name"),
		ShortName: params.String("name"),
		StartURL:  "/",
		Display:   "standalone",
		Icons:     []ManifestIcon{},
	}

	favicon := params.String("favicon")
	if _, err := os.Stat(favicon); err == nil {
		name := "favicon" + filepath.Ext(favicon)
		dst := filepath.Join(out.Config.OutputDir, name)
		if err := copyFile(favicon, dst); err != nil {
			return fmt.Errorf("failed to copy favicon: %w", err)
		}
		out.markEmitted(dst)

		icon := ManifestIcon{Src: "/" + name, Type: mime.TypeByExtension(filepath.Ext(favicon))}
		if w, h, err := imageSize(favicon); err == nil {
			icon.Sizes = fmt.Sprintf("%dx%d", w, h)
		}
		manifest.Icons = append(manifest.Icons, icon)
	} else {
		log.Warn().Str("favicon", favicon).Msg("Favicon not found, manifest has no icons")
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	dst := filepath.Join(out.Config.OutputDir, "manifest.json")
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	out.markEmitted(dst)

	return nil
}

func imageSize(p string) (int, int, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
