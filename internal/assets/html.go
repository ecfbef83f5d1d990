package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/catalog"
	"github.com/wolfeidau/preactpack/internal/plan"
)

// ReloadPath is the dev server endpoint streaming rebuild notifications
const ReloadPath = "/_preactpack/reload"

const defaultTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
{{if .Description}}<meta name="description" content="{{.Description}}">{{end}}
<link rel="manifest" href="/manifest.json">
</head>
<body>
</body>
</html>
`

const reloadClient = `<script>new EventSource(%q).addEventListener("change", () => location.reload());</script>`

const serviceWorkerRegistration = `<script>if ("serviceWorker" in navigator) { window.addEventListener("load", () => navigator.serviceWorker.register(%q)); }</script>`

type htmlEmit struct{ emitOnly }

func (htmlEmit) Emit(ctx context.Context, out *Output, params plan.Params) error {
	log := zerolog.Ctx(ctx)

	if err := out.loadScripts(); err != nil {
		return err
	}

	source, err := os.ReadFile(params.String("template"))
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("template", params.String("template")).Msg("No html template, using default")
		source = []byte(defaultTemplate)
	} else if err != nil {
		return fmt.Errorf("failed to read html template: %w", err)
	}

	tmpl, err := template.New("index.html").Funcs(templateFuncs()).Parse(string(source))
	if err != nil {
		return fmt.Errorf("failed to parse html template: %w", err)
	}

	// script and stylesheet tags are injected after rendering, never by the template
	data := map[string]any{
		"Title":       params.String("title"),
		"Description": params.String("description"),
		"Env":         string(out.Plan.Environment()),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render html template: %w", err)
	}

	head, err := headTags(out)
	if err != nil {
		return err
	}
	body := bodyTags(out)

	page := injectBefore(buf.String(), "</head>", head)
	page = injectBefore(page, "</body>", body)

	if err := os.WriteFile(out.HTMLPath, []byte(page), 0600); err != nil {
		return fmt.Errorf("failed to write html: %w", err)
	}
	out.markEmitted(out.HTMLPath)

	log.Info().Str("file", out.HTMLPath).Strs("scripts", out.Scripts).Msg("Built page")
	return nil
}

func headTags(out *Output) (string, error) {
	var b strings.Builder

	style, _ := out.Plan.Stage(catalog.StylePipeline)
	inject := style.Params.String("mode") == "inject"

	for i, href := range out.Styles {
		if !inject {
			fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(href))
			continue
		}
		css, err := os.ReadFile(out.StyleFiles[i])
		if err != nil {
			return "", fmt.Errorf("failed to read stylesheet: %w", err)
		}
		fmt.Fprintf(&b, "<style data-href=\"%s\">%s</style>\n", html.EscapeString(href), css)
	}

	for _, src := range out.Preloads {
		fmt.Fprintf(&b, "<link rel=\"modulepreload\" href=\"%s\">\n", html.EscapeString(src))
	}

	return b.String(), nil
}

func bodyTags(out *Output) string {
	var b strings.Builder

	for _, src := range out.Scripts {
		fmt.Fprintf(&b, "<script type=\"module\" src=\"%s\"></script>\n", html.EscapeString(src))
	}

	if dev, ok := out.Plan.Stage(catalog.DevServer); ok && dev.Params.Bool("hot") {
		fmt.Fprintf(&b, reloadClient+"\n", ReloadPath)
	}

	if sw, ok := out.Plan.Stage(catalog.ServiceWorker); ok {
		fmt.Fprintf(&b, serviceWorkerRegistration+"\n", "/"+sw.Params.String("filename"))
	}

	return b.String()
}

// injectBefore inserts tags before the last occurrence of marker, or appends
// them when the marker is missing
func injectBefore(page, marker, tags string) string {
	if tags == "" {
		return page
	}
	idx := strings.LastIndex(strings.ToLower(page), marker)
	if idx < 0 {
		return page + tags
	}
	return page[:idx] + tags + page[idx:]
}

var stylesheetLink = regexp.MustCompile(`<link rel="stylesheet" href="([^"]+)">`)

type criticalCSS struct{ emitOnly }

// Emit inlines the extracted stylesheet into the head and defers loading the
// full sheet. Above the fold analysis for each viewport needs a browser, so
// the viewports are recorded on the inlined block for an external tool.
func (criticalCSS) Emit(ctx context.Context, out *Output, params plan.Params) error {
	page, err := os.ReadFile(out.HTMLPath)
	if err != nil {
		return fmt.Errorf("failed to read html: %w", err)
	}

	files := map[string]string{}
	for i, href := range out.Styles {
		files[href] = out.StyleFiles[i]
	}
	viewports := strings.Join(params.Strings("viewports"), ",")

	var inlineErr error
	result := stylesheetLink.ReplaceAllStringFunc(string(page), func(tag string) string {
		href := html.UnescapeString(stylesheetLink.FindStringSubmatch(tag)[1])
		file, ok := files[href]
		if !ok {
			return tag
		}
		css, err := os.ReadFile(file)
		if err != nil {
			inlineErr = err
			return tag
		}
		escaped := html.EscapeString(href)
		return fmt.Sprintf(
			"<style data-critical-viewports=\"%s\">%s</style>\n"+
				"<link rel=\"stylesheet\" href=\"%s\" media=\"print\" onload=\"this.media='all'\">\n"+
				"<noscript><link rel=\"stylesheet\" href=\"%s\"></noscript>",
			html.EscapeString(viewports), css, escaped, escaped)
	})
	if inlineErr != nil {
		return fmt.Errorf("failed to inline stylesheet: %w", inlineErr)
	}

	if err := os.WriteFile(out.HTMLPath, []byte(result), 0600); err != nil {
		return fmt.Errorf("failed to write html: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("viewports", viewports).Msg("Inlined critical styles")
	return nil
}
