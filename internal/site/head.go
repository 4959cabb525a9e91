package site

import (
	"encoding/json"
	"html"
	"strings"
)

// ClientScript is where the router serves the browser client.
const ClientScript = "/live/client/applykit.js"

// PageConfig is the metadata rendered into a page's head.
type PageConfig struct {
	SiteName    string
	Title       string
	Description string
	URL         string // canonical
	Keywords    []string
	OGImage     string
	Language    string // defaults to "en"
	ThemeColor  string // defaults to the primary color
}

func (cfg PageConfig) lang() string {
	if cfg.Language == "" {
		return "en"
	}
	return cfg.Language
}

// fullTitle appends the site name unless the page is the site itself.
func (cfg PageConfig) fullTitle() string {
	if cfg.SiteName == "" || cfg.SiteName == cfg.Title {
		return cfg.Title
	}
	return cfg.Title + " | " + cfg.SiteName
}

// meta is one <meta> element; attr is "name" or "property".
type meta struct {
	attr, key, content string
}

func (cfg PageConfig) metas() []meta {
	theme := cfg.ThemeColor
	if theme == "" {
		theme = Colors["primary"]
	}
	tags := []meta{
		{"name", "description", cfg.Description},
		{"name", "keywords", strings.Join(cfg.Keywords, ", ")},
		{"name", "theme-color", theme},
		{"name", "robots", "index, follow"},
		{"property", "og:type", "website"},
		{"property", "og:site_name", cfg.SiteName},
		{"property", "og:title", cfg.Title},
		{"property", "og:description", cfg.Description},
		{"property", "og:url", cfg.URL},
		{"property", "og:image", cfg.OGImage},
		{"property", "og:locale", cfg.lang()},
		{"name", "twitter:card", "summary_large_image"},
		{"name", "twitter:title", cfg.Title},
		{"name", "twitter:description", cfg.Description},
		{"name", "twitter:image", cfg.OGImage},
	}
	out := tags[:0]
	for _, m := range tags {
		if m.content != "" {
			out = append(out, m)
		}
	}
	return out
}

// structuredData returns the schema.org WebPage block. json.Marshal
// escapes <, > and &, so the result is safe inside a script element.
func (cfg PageConfig) structuredData() string {
	type org struct {
		Type string `json:"@type"`
		Name string `json:"name"`
	}
	ld := struct {
		Context     string `json:"@context"`
		Type        string `json:"@type"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		URL         string `json:"url,omitempty"`
		Language    string `json:"inLanguage"`
		Publisher   *org   `json:"publisher,omitempty"`
	}{
		Context:     "https://schema.org",
		Type:        "WebPage",
		Name:        cfg.Title,
		Description: cfg.Description,
		URL:         cfg.URL,
		Language:    cfg.lang(),
	}
	if cfg.SiteName != "" {
		ld.Publisher = &org{Type: "Organization", Name: cfg.SiteName}
	}
	b, err := json.Marshal(ld)
	if err != nil {
		return ""
	}
	return string(b)
}

// RenderHead renders the <head> element: metadata, structured data, the
// stylesheet plus customCSS, and the deferred client script.
func RenderHead(cfg PageConfig, customCSS string) string {
	var b strings.Builder
	line := func(parts ...string) {
		for _, p := range parts {
			b.WriteString(p)
		}
		b.WriteByte('\n')
	}

	line("<head>")
	line(`<meta charset="UTF-8">`)
	line(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`)
	line("<title>", html.EscapeString(cfg.fullTitle()), "</title>")
	if cfg.URL != "" {
		line(`<link rel="canonical" href="`, html.EscapeString(cfg.URL), `">`)
	}
	for _, m := range cfg.metas() {
		line(`<meta `, m.attr, `="`, m.key, `" content="`, html.EscapeString(m.content), `">`)
	}
	if ld := cfg.structuredData(); ld != "" {
		line(`<script type="application/ld+json">`, ld, `</script>`)
	}
	line("<style>")
	b.WriteString(RenderStyles())
	if customCSS != "" {
		b.WriteByte('\n')
		b.WriteString(customCSS)
	}
	line()
	line("</style>")
	line(`<script src="`, ClientScript, `" defer></script>`)
	line("</head>")
	return b.String()
}

// RenderDocument wraps body in a complete HTML document.
func RenderDocument(cfg PageConfig, customCSS, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"")
	b.WriteString(html.EscapeString(cfg.lang()))
	b.WriteString("\">\n")
	b.WriteString(RenderHead(cfg, customCSS))
	b.WriteString("<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}
