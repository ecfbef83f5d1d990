package assets

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/zeebo/blake3"
)

// PrecacheEntry is one file the service worker caches on install
type PrecacheEntry struct {
	URL      string `json:"url"`
	Revision string `json:"revision"`
}

var swTemplate = template.Must(template.New("sw.js").Parse(`const PRECACHE = {{.Precache}};
const CACHE = "preactpack-{{.Version}}";

self.addEventListener("install", (event) => {
  event.waitUntil(caches.open(CACHE).then((cache) => cache.addAll(PRECACHE.map((e) => e.url))));
{{- if .SkipWaiting}}
  self.skipWaiting();
{{- end}}
});

self.addEventListener("activate", (event) => {
  event.waitUntil(
    caches.keys().then((keys) => Promise.all(keys.filter((k) => k !== CACHE).map((k) => caches.delete(k))))
{{- if .ClientsClaim}}
      .then(() => self.clients.claim())
{{- end}}
  );
});

self.addEventListener("fetch", (event) => {
  if (event.request.method !== "GET") return;
  const url = new URL(event.request.url);
  const lookup = event.request.mode === "navigate" ? "/index.html" : url.pathname;
  event.respondWith(caches.match(lookup).then((hit) => hit || fetch(event.request)));
});
`))

type serviceWorker struct{ emitOnly }

func (serviceWorker) Emit(ctx context.Context, out *Output, params plan.Params) error {
	filename := params.String("filename")

	entries, err := Precache(out.Config.OutputDir, filename)
	if err != nil {
		return err
	}

	script, err := RenderServiceWorker(entries, params.Bool("clientsClaim"), params.Bool("skipWaiting"))
	if err != nil {
		return err
	}

	dst := filepath.Join(out.Config.OutputDir, filename)
	if err := os.WriteFile(dst, script, 0600); err != nil {
		return fmt.Errorf("failed to write service worker: %w", err)
	}
	out.markEmitted(dst)

	zerolog.Ctx(ctx).Info().Int("precache", len(entries)).Str("file", dst).Msg("Built service worker")
	return nil
}

// Precache hashes every servable file in dir. Source maps, precompressed
// siblings, the metafile and the worker itself are left out.
func Precache(dir, workerName string) ([]PrecacheEntry, error) {
	var entries []PrecacheEntry

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == workerName || rel == "meta.json" || strings.HasSuffix(rel, ".map") || strings.HasSuffix(rel, ".gz") {
			return nil
		}

		revision, err := hashFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, PrecacheEntry{URL: "/" + rel, Revision: revision})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build precache list: %w", err)
	}

	return entries, nil
}

// RenderServiceWorker produces the worker script. The cache version is derived
// from the precache list so unchanged builds keep their cache.
func RenderServiceWorker(entries []PrecacheEntry, clientsClaim, skipWaiting bool) ([]byte, error) {
	if entries == nil {
		entries = []PrecacheEntry{}
	}
	precache, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}

	version := blake3.Sum256(precache)

	var buf bytes.Buffer
	err = swTemplate.Execute(&buf, map[string]any{
		"Precache":     string(precache),
		"Version":      hex.EncodeToString(version[:8]),
		"ClientsClaim": clientsClaim,
		"SkipWaiting":  skipWaiting,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render service worker: %w", err)
	}
	return buf.Bytes(), nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}
