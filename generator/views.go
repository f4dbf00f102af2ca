package generator

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/clower/content"
)

// NavLink is one entry of the generated site navigation.
type NavLink struct {
	Title  string
	Href   string
	Active bool
}

// PageData is the context every page is rendered with.
type PageData struct {
	SiteName string
	Page     content.Page
	Title    string
	Theme    content.Theme
	Sections []content.Section
	Nav      []NavLink
}

// SectionRenderer turns one section into markup.
type SectionRenderer func(s content.Section) templ.Component

// Layout renders a complete HTML document for d.
func Layout(d PageData, renderers map[string]SectionRenderer) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
		buf.WriteString("<meta charset=\"utf-8\">\n")
		buf.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
		buf.WriteString("<title>")
		buf.WriteString(templ.EscapeString(pageTitle(d)))
		buf.WriteString("</title>\n<style>\n")
		writeThemeCSS(&buf, d.Theme)
		buf.WriteString("</style>\n</head>\n<body>\n")

		if len(d.Nav) > 0 {
			buf.WriteString("<header class=\"site-header\"><nav>")
			for _, l := range d.Nav {
				buf.WriteString("<a href=\"")
				buf.WriteString(templ.EscapeString(l.Href))
				buf.WriteString("\"")
				if l.Active {
					buf.WriteString(" aria-current=\"page\"")
				}
				buf.WriteString(">")
				buf.WriteString(templ.EscapeString(l.Title))
				buf.WriteString("</a>")
			}
			buf.WriteString("</nav></header>\n")
		}

		buf.WriteString("<main>\n")
		for _, s := range d.Sections {
			render, ok := renderers[s.Type]
			if !ok {
				render = unknownSection
			}
			if err := render(s).Render(ctx, &buf); err != nil {
				return err
			}
			buf.WriteString("\n")
		}
		buf.WriteString("</main>\n</body>\n</html>\n")

		_, err := w.Write(buf.Bytes())
		return err
	})
}

func pageTitle(d PageData) string {
	switch {
	case d.SiteName == "":
		return d.Title
	case d.Page.IsIndex():
		return d.SiteName
	default:
		return d.Title + " | " + d.SiteName
	}
}

func writeThemeCSS(buf *bytes.Buffer, t content.Theme) {
	buf.WriteString(":root {\n")
	cssVar(buf, "--color-primary", cssValue(t.Colors.Primary))
	cssVar(buf, "--color-secondary", cssValue(t.Colors.Secondary))
	cssVar(buf, "--color-text", cssValue(t.Colors.Text))
	cssVar(buf, "--color-background", cssValue(t.Colors.Background))
	cssVar(buf, "--font-display", fontStack(t.Fonts.Display))
	cssVar(buf, "--font-body", fontStack(t.Fonts.Body))
	cssVar(buf, "--radius-small", cssValue(t.Radius.Small))
	cssVar(buf, "--radius-medium", cssValue(t.Radius.Medium))
	cssVar(buf, "--radius-large", cssValue(t.Radius.Large))
	buf.WriteString("}\n")
	buf.WriteString(baseCSS)
}

func cssVar(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	buf.WriteString("  ")
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString(";\n")
}

// cssValue keeps only characters that can appear in a color, length or
// font name, so a theme value cannot close the style element or start a
// new declaration.
func cssValue(v string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(v) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("#.,%()- ", r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func fontStack(name string) string {
	name = cssValue(name)
	if name == "" {
		return "sans-serif"
	}
	return "'" + name + "', sans-serif"
}

const baseCSS = `body { margin: 0; color: var(--color-text); background: var(--color-background); font-family: var(--font-body); }
h1, h2, h3 { font-family: var(--font-display); }
.site-header nav { display: flex; gap: 1rem; padding: 1rem 2rem; }
.site-header a { color: var(--color-text); text-decoration: none; }
.site-header a[aria-current] { color: var(--color-primary); }
main { max-width: 960px; margin: 0 auto; padding: 2rem; }
section { margin-bottom: 2rem; }
.hero { padding: 4rem 2rem; border-radius: var(--radius-large); background: var(--color-secondary); text-align: center; }
.hero .cta { display: inline-block; padding: .75rem 1.5rem; border-radius: var(--radius-medium); background: var(--color-primary); color: #fff; text-decoration: none; }
.image img { max-width: 100%; border-radius: var(--radius-medium); }
`

func textSection(sanitize func(string) string) SectionRenderer {
	return func(s content.Section) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			if _, err := io.WriteString(w, `<section class="text">`); err != nil {
				return err
			}
			if err := templ.Raw(sanitize(s.Prop("content"))).Render(ctx, w); err != nil {
				return err
			}
			_, err := io.WriteString(w, `</section>`)
			return err
		})
	}
}

func markdownSection(render func(string) (string, error)) SectionRenderer {
	return func(s content.Section) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			html, err := render(s.Prop("content"))
			if err != nil {
				return err
			}
			if _, err := io.WriteString(w, `<section class="markdown">`); err != nil {
				return err
			}
			if err := templ.Raw(html).Render(ctx, w); err != nil {
				return err
			}
			_, err = io.WriteString(w, `</section>`)
			return err
		})
	}
}

func heroSection(s content.Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(`<section class="hero">`)
		if title := s.Prop("title"); title != "" {
			buf.WriteString("<h1>" + templ.EscapeString(title) + "</h1>")
		}
		if sub := s.Prop("subtitle"); sub != "" {
			buf.WriteString("<p class=\"subtitle\">" + templ.EscapeString(sub) + "</p>")
		}
		if cta := s.Prop("cta"); cta != "" {
			link := s.Prop("ctaLink")
			if link == "" {
				link = "#"
			}
			buf.WriteString(`<a class="cta" href="` + templ.EscapeString(string(templ.URL(link))) + `">`)
			buf.WriteString(templ.EscapeString(cta) + "</a>")
		}
		buf.WriteString("</section>")
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func imageSection(s content.Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(`<section class="image"><figure>`)
		buf.WriteString(`<img src="` + templ.EscapeString(string(templ.URL(s.Prop("src")))) + `"`)
		buf.WriteString(` alt="` + templ.EscapeString(s.Prop("alt")) + `" loading="lazy">`)
		if caption := s.Prop("caption"); caption != "" {
			buf.WriteString("<figcaption>" + templ.EscapeString(caption) + "</figcaption>")
		}
		buf.WriteString("</figure></section>")
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// unknownSection renders a comment so a page with a section type this build
// does not know still generates.
func unknownSection(s content.Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<!-- unsupported section: "+templ.EscapeString(s.Type)+" -->")
		return err
	})
}
