// Package generator renders the stored pages and theme into a directory of
// static HTML files.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/eringen/clower/content"
)

// PageLister is the part of the page store the generator reads.
type PageLister interface {
	List(ctx context.Context) ([]content.Page, error)
}

// ThemeSource returns the current theme, creating the default if needed.
type ThemeSource interface {
	Get(ctx context.Context) (content.Theme, error)
}

// Generator renders every page on each run; there is no incremental mode.
type Generator struct {
	mu        sync.Mutex
	pages     PageLister
	themes    ThemeSource
	outDir    string
	siteURL   string
	siteName  string
	logger    *zap.Logger
	renderers map[string]SectionRenderer
}

// Option configures a Generator.
type Option func(*Generator)

// WithSiteURL enables sitemap.xml generation for the given canonical URL.
func WithSiteURL(u string) Option {
	return func(g *Generator) { g.siteURL = u }
}

// WithSiteName sets the name appended to page titles.
func WithSiteName(name string) Option {
	return func(g *Generator) { g.siteName = name }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithSectionRenderer registers or replaces the renderer for a section type.
func WithSectionRenderer(typ string, r SectionRenderer) Option {
	return func(g *Generator) { g.renderers[typ] = r }
}

// New returns a Generator writing into outDir.
func New(pages PageLister, themes ThemeSource, outDir string, opts ...Option) *Generator {
	m := newMarkup()
	g := &Generator{
		pages:  pages,
		themes: themes,
		outDir: outDir,
		logger: zap.NewNop(),
		renderers: map[string]SectionRenderer{
			content.SectionText:     textSection(m.sanitize),
			content.SectionMarkdown: markdownSection(m.markdown),
			content.SectionHero:     heroSection,
			content.SectionImage:    imageSection,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OutputFile returns the file name a page with slug is written to.
func OutputFile(slug string) string {
	if slug == content.IndexSlug {
		return "index.html"
	}
	return slug + ".html"
}

type renderedPage struct {
	file string
	html []byte
}

// Generate renders every page and writes the results. All pages are
// rendered before anything is written, so a render failure leaves the
// previous output untouched. It returns the number of pages written.
// Files of pages that were since deleted or renamed are left in place.
func (g *Generator) Generate(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	theme, err := g.themes.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("generate: load theme: %w", err)
	}
	pages, err := g.pages.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("generate: load pages: %w", err)
	}

	out := make([]renderedPage, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := content.ValidateSlug(p.Slug); err != nil {
			return 0, fmt.Errorf("generate: page %q: %w", p.Slug, err)
		}
		var buf bytes.Buffer
		if err := g.render(ctx, &buf, p, theme, pages); err != nil {
			return 0, fmt.Errorf("generate: render %s: %w", p.Slug, err)
		}
		out = append(out, renderedPage{file: OutputFile(p.Slug), html: buf.Bytes()})
	}

	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return 0, fmt.Errorf("generate: create output dir: %w", err)
	}
	for _, r := range out {
		if err := os.WriteFile(filepath.Join(g.outDir, r.file), r.html, 0o644); err != nil {
			return 0, fmt.Errorf("generate: write %s: %w", r.file, err)
		}
	}
	if g.siteURL != "" {
		if err := g.writeSitemap(pages); err != nil {
			return 0, fmt.Errorf("generate: sitemap: %w", err)
		}
	}

	g.logger.Info("site generated", zap.Int("pages", len(out)), zap.String("output", g.outDir))
	return len(out), nil
}

// RenderPage renders p with the current theme and navigation without
// writing anything.
func (g *Generator) RenderPage(ctx context.Context, w io.Writer, p content.Page) error {
	cmp, err := g.Page(ctx, p)
	if err != nil {
		return err
	}
	return cmp.Render(ctx, w)
}

// Page returns the component for p, loading the theme and navigation up
// front so rendering itself only fails on section errors.
func (g *Generator) Page(ctx context.Context, p content.Page) (templ.Component, error) {
	theme, err := g.themes.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load theme: %w", err)
	}
	pages, err := g.pages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	return g.layout(p, theme, pages), nil
}

func (g *Generator) render(ctx context.Context, w io.Writer, p content.Page, theme content.Theme, all []content.Page) error {
	return g.layout(p, theme, all).Render(ctx, w)
}

func (g *Generator) layout(p content.Page, theme content.Theme, all []content.Page) templ.Component {
	sections := p.Sections
	if sections == nil {
		sections = []content.Section{}
	}
	title := p.Title
	if title == "" {
		title = titleFromSlug(p.Slug)
	}
	data := PageData{
		SiteName: g.siteName,
		Page:     p,
		Title:    title,
		Theme:    theme,
		Sections: sections,
		Nav:      buildNav(all, p.Slug),
	}
	return Layout(data, g.renderers)
}

// buildNav lists every page, home first and the rest by slug, so output
// does not depend on storage enumeration order.
func buildNav(pages []content.Page, current string) []NavLink {
	sorted := make([]content.Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsIndex() != sorted[j].IsIndex() {
			return sorted[i].IsIndex()
		}
		return sorted[i].Slug < sorted[j].Slug
	})
	links := make([]NavLink, 0, len(sorted))
	for _, p := range sorted {
		title := p.Title
		if title == "" {
			title = titleFromSlug(p.Slug)
		}
		links = append(links, NavLink{
			Title:  title,
			Href:   OutputFile(p.Slug),
			Active: p.Slug == current,
		})
	}
	return links
}
