package generator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/eringen/clower/content"
	"github.com/eringen/clower/storage"
)

type fixture struct {
	pages  *content.PageStore
	themes *content.ThemeStore
	out    string
}

func newFixture(t *testing.T, pages ...content.Page) fixture {
	t.Helper()
	dir := t.TempDir()
	b, err := storage.NewFileBackend(filepath.Join(dir, "data"))
	require.NoError(t, err)
	f := fixture{
		pages:  content.NewPageStore(b),
		themes: content.NewThemeStore(b),
		out:    filepath.Join(dir, "public"),
	}
	for _, p := range pages {
		require.NoError(t, f.pages.Put(context.Background(), p))
	}
	return f
}

func (f fixture) generator(opts ...Option) *Generator {
	return New(f.pages, f.themes, f.out, opts...)
}

func (f fixture) doc(t *testing.T, file string) *goquery.Document {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(f.out, file))
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	require.NoError(t, err)
	return doc
}

func text(html string) content.Section {
	return contentSection("text", map[string]any{"content": html})
}

func contentSection(typ string, props map[string]any) content.Section {
	return content.Section{Type: typ, Props: props}
}

func TestGenerateWritesOneFilePerPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		content.Page{Slug: "index", Title: "Home", Sections: []content.Section{text("<p>Welcome</p>")}},
		content.Page{Slug: "about", Title: "About", Sections: []content.Section{text("<p>Hi</p>")}},
	)

	n, err := f.generator().Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	about := f.doc(t, "about.html")
	require.Equal(t, "Hi", about.Find("main section.text p").Text())
	require.Equal(t, "About", about.Find("title").Text())
	require.Equal(t, 2, about.Find("header nav a").Length())
	require.Equal(t, "about.html", about.Find("header nav a[aria-current]").AttrOr("href", ""))

	home := f.doc(t, "index.html")
	require.Equal(t, "Welcome", home.Find("main p").Text())
	require.Equal(t, "index.html", home.Find("header nav a").First().AttrOr("href", ""))
}

func TestGenerateCreatesDefaultTheme(t *testing.T) {
	t.Parallel()

	f := newFixture(t, content.Page{Slug: "index", Title: "Home"})
	_, err := f.generator().Generate(context.Background())
	require.NoError(t, err)

	style := f.doc(t, "index.html").Find("style").Text()
	require.Contains(t, style, "--color-primary: #9C6BFF;")
	require.Contains(t, style, "--font-display: 'Outfit', sans-serif;")
}

func TestGenerateIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		content.Page{Slug: "index", Title: "Home", Sections: []content.Section{content.NewSection(content.SectionHero)}},
		content.Page{Slug: "b", Title: "B", Sections: []content.Section{contentSection("markdown", map[string]any{"content": "# B\n\nsome *text*"})}},
		content.Page{Slug: "a", Title: "A"},
	)
	g := f.generator(WithSiteURL("https://example.com"))

	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	first := map[string][]byte{}
	for _, name := range []string{"index.html", "a.html", "b.html", "sitemap.xml"} {
		raw, err := os.ReadFile(filepath.Join(f.out, name))
		require.NoError(t, err)
		first[name] = raw
	}

	_, err = g.Generate(context.Background())
	require.NoError(t, err)
	for name, want := range first {
		got, err := os.ReadFile(filepath.Join(f.out, name))
		require.NoError(t, err)
		require.True(t, bytes.Equal(want, got), "%s changed between runs", name)
	}
}

func TestGenerateEscapesUntrustedText(t *testing.T) {
	t.Parallel()

	f := newFixture(t, content.Page{
		Slug:  "xss",
		Title: "<script>alert('title')</script>",
		Sections: []content.Section{
			contentSection("hero", map[string]any{
				"title":   "<script>alert(1)</script>",
				"cta":     "Click",
				"ctaLink": "javascript:alert(1)",
			}),
			text(`<p onclick="x()">ok</p><script>alert(2)</script>`),
			contentSection("image", map[string]any{"src": "javascript:alert(3)", "alt": `"><script>`, "caption": "<b>c</b>"}),
		},
	})
	_, err := f.generator().Generate(context.Background())
	require.NoError(t, err)

	doc := f.doc(t, "xss.html")
	require.Equal(t, 0, doc.Find("script").Length())
	require.Equal(t, "<script>alert(1)</script>", doc.Find(".hero h1").Text())
	require.NotContains(t, doc.Find(".hero a.cta").AttrOr("href", ""), "javascript:")
	require.NotContains(t, doc.Find(".image img").AttrOr("src", ""), "javascript:")
	require.Equal(t, "ok", doc.Find("section.text p").Text())
	_, hasOnclick := doc.Find("section.text p").Attr("onclick")
	require.False(t, hasOnclick)
	require.Equal(t, "<b>c</b>", doc.Find("figcaption").Text())
}

func TestGenerateToleratesUnknownSections(t *testing.T) {
	t.Parallel()

	f := newFixture(t, content.Page{Slug: "mixed", Title: "Mixed", Sections: []content.Section{
		contentSection("carousel", map[string]any{"items": []any{"a", "b"}}),
		text("<p>after</p>"),
	}})
	_, err := f.generator().Generate(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(f.out, "mixed.html"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "<!-- unsupported section: carousel -->")
	require.Contains(t, string(raw), "<p>after</p>")
}

func TestGenerateRendersMarkdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, content.Page{Slug: "md", Title: "MD", Sections: []content.Section{
		contentSection("markdown", map[string]any{"content": "## Heading\n\n**bold** <script>x</script>"}),
	}})
	_, err := f.generator().Generate(context.Background())
	require.NoError(t, err)

	doc := f.doc(t, "md.html")
	require.Equal(t, "Heading", doc.Find("section.markdown h2").Text())
	require.Equal(t, "bold", doc.Find("section.markdown strong").Text())
	require.Equal(t, 0, doc.Find("script").Length())
}

func TestGenerateFailsFastWithoutWriting(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		content.Page{Slug: "good", Title: "Good"},
		content.Page{Slug: "bad", Title: "Bad", Sections: []content.Section{contentSection("boom", nil)}},
	)
	boom := errors.New("boom")
	g := f.generator(WithSectionRenderer("boom", func(content.Section) templ.Component {
		return templ.ComponentFunc(func(context.Context, io.Writer) error { return boom })
	}))

	n, err := g.Generate(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, n)
	_, statErr := os.Stat(filepath.Join(f.out, "good.html"))
	require.True(t, os.IsNotExist(statErr), "no page should be written when one fails")
}

func TestGenerateWritesSitemap(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		content.Page{Slug: "index", Title: "Home"},
		content.Page{Slug: "about", Title: "About"},
	)
	_, err := f.generator(WithSiteURL("https://example.com/site")).Generate(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(f.out, "sitemap.xml"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "<loc>https://example.com/site/</loc>")
	require.Contains(t, string(raw), "<loc>https://example.com/site/about.html</loc>")
}

func TestThemeValuesCannotBreakOutOfStyle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, content.Page{Slug: "index", Title: "Home"})
	theme := content.DefaultTheme()
	theme.Colors.Primary = "red;}</style><script>alert(1)</script>"
	require.NoError(t, f.themes.Put(context.Background(), theme))

	_, err := f.generator().Generate(context.Background())
	require.NoError(t, err)
	doc := f.doc(t, "index.html")
	require.Equal(t, 0, doc.Find("script").Length())
	require.Equal(t, 1, doc.Find("style").Length())
}

func TestRenderPageDoesNotWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t, content.Page{Slug: "index", Title: "Home"})
	var buf bytes.Buffer
	err := f.generator(WithSiteName("Clower")).RenderPage(context.Background(), &buf, content.Page{Slug: "draft", Title: "Draft"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "<title>Draft | Clower</title>")

	_, statErr := os.Stat(f.out)
	require.True(t, os.IsNotExist(statErr))
}

func TestTitleFallsBackToSlug(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Our Team", titleFromSlug("our-team"))
	f := newFixture(t, content.Page{Slug: "contact_us"})
	_, err := f.generator().Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Contact Us", strings.TrimSpace(f.doc(t, "contact_us.html").Find("title").Text()))
}

func TestWatchRebuildsOnChange(t *testing.T) {
	f := newFixture(t, content.Page{Slug: "index", Title: "Home", Sections: []content.Section{text("<p>home</p>")}})
	g := f.generator()
	data := filepath.Join(filepath.Dir(f.out), "data")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Watch(ctx, []string{data}, 20*time.Millisecond) }()

	news := content.Page{Slug: "news", Title: "News", Sections: []content.Section{text("<p>fresh</p>")}}
	target := filepath.Join(f.out, "news.html")
	// The watcher may not be registered yet when the first save lands, so
	// keep saving until a rebuild shows up.
	require.Eventually(t, func() bool {
		if _, err := os.Stat(target); err == nil {
			return true
		}
		if err := f.pages.Put(ctx, news); err != nil {
			t.Error(err)
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
	require.Contains(t, f.doc(t, "news.html").Find("main").Text(), "fresh")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
