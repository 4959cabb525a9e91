// Package site holds the marketing pages that carry apply forms and
// registers them as live pages.
package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saludstaffing/applykit/pkg/apply"
	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/security"
)

// ManifestFile is the name of the manifest at the root of a site directory.
const ManifestFile = "site.yaml"

//go:embed content
var content embed.FS

var (
	ErrNoPages       = errors.New("site: manifest lists no pages")
	ErrDuplicatePath = errors.New("site: duplicate page path")
)

// Manifest describes a site directory.
type Manifest struct {
	Name       string      `yaml:"name" validate:"required"`
	URL        string      `yaml:"url" validate:"omitempty,url"`
	Language   string      `yaml:"language"`
	ThemeColor string      `yaml:"theme_color" validate:"omitempty,hexcolor"`
	OGImage    string      `yaml:"og_image"`
	Pages      []PageEntry `yaml:"pages" validate:"dive"`
}

// PageEntry is one manifest entry.
type PageEntry struct {
	Path        string   `yaml:"path" validate:"required,startswith=/"`
	File        string   `yaml:"file" validate:"required"`
	Title       string   `yaml:"title" validate:"required"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// Page is a rendered document ready to mount.
type Page struct {
	Path     string
	Name     string
	Document []byte
}

// Site is a loaded set of pages.
type Site struct {
	manifest Manifest
	pages    []Page
}

// Embedded returns the pages compiled into the binary.
func Embedded() fs.FS {
	fsys, err := fs.Sub(content, "content")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Open loads the site from dir, or the embedded site when dir is empty.
func Open(dir string) (*Site, error) {
	if dir == "" {
		return Load(Embedded())
	}
	return Load(os.DirFS(dir))
}

// Load reads the manifest in fsys and renders every page it lists.
func Load(fsys fs.FS) (*Site, error) {
	raw, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("site: read manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("site: parse manifest: %w", err)
	}
	if err := validator.New().Struct(m); err != nil {
		return nil, fmt.Errorf("site: invalid manifest: %w", err)
	}
	if len(m.Pages) == 0 {
		return nil, ErrNoPages
	}

	s := &Site{manifest: m}
	seen := make(map[string]bool, len(m.Pages))
	for _, entry := range m.Pages {
		if seen[entry.Path] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, entry.Path)
		}
		seen[entry.Path] = true

		body, err := fs.ReadFile(fsys, entry.File)
		if err != nil {
			return nil, fmt.Errorf("site: page %s: %w", entry.Path, err)
		}
		s.pages = append(s.pages, Page{
			Path:     entry.Path,
			Name:     strings.TrimSuffix(path.Base(entry.File), path.Ext(entry.File)),
			Document: []byte(RenderDocument(m.pageConfig(entry), "", string(body))),
		})
	}
	return s, nil
}

// pageConfig strips markup from the title and description; both end up in
// plain text contexts.
func (m Manifest) pageConfig(entry PageEntry) PageConfig {
	url := ""
	if m.URL != "" {
		url = strings.TrimSuffix(m.URL, "/") + entry.Path
	}
	return PageConfig{
		SiteName:    m.Name,
		Title:       security.PlainText(entry.Title),
		Description: security.PlainText(entry.Description),
		URL:         url,
		Keywords:    entry.Keywords,
		OGImage:     m.OGImage,
		Language:    m.Language,
		ThemeColor:  m.ThemeColor,
	}
}

// Manifest returns the parsed manifest.
func (s *Site) Manifest() Manifest {
	return s.manifest
}

// Pages returns the rendered pages in manifest order.
func (s *Site) Pages() []Page {
	return s.pages
}

// Registrar is where pages get mounted; *router.Router satisfies it.
type Registrar interface {
	Page(path string, factory func() core.Component)
}

// Register mounts every page on r. Each live session gets its own
// apply.Page over the shared document.
func (s *Site) Register(r Registrar, opts ...apply.PageOption) {
	for _, p := range s.pages {
		r.Page(p.Path, func() core.Component {
			return apply.NewPage(p.Name, p.Document, opts...)
		})
	}
}
