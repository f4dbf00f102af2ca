package generator

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eringen/clower/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

func (g *Generator) writeSitemap(pages []content.Page) error {
	slugs := make([]string, 0, len(pages))
	for _, p := range pages {
		slugs = append(slugs, p.Slug)
	}
	sort.Strings(slugs)

	urls := make([]sitemapURL, 0, len(slugs))
	for _, s := range slugs {
		urls = append(urls, sitemapURL{Loc: PageURL(g.siteURL, s)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(sitemap); err != nil {
		return err
	}
	buf.WriteString("\n")
	return os.WriteFile(filepath.Join(g.outDir, "sitemap.xml"), buf.Bytes(), 0o644)
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PageURL returns the public URL of the generated file for slug.
func PageURL(base, slug string) string {
	if slug == content.IndexSlug {
		return BuildURL(base)
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join("/", u.Path, OutputFile(slug))
	return u.String()
}
