package content

import "fmt"

// Known section types.
const (
	SectionText     = "text"
	SectionHero     = "hero"
	SectionImage    = "image"
	SectionMarkdown = "markdown"
)

// SectionTypes lists the types the generator knows how to render.
var SectionTypes = []string{SectionText, SectionHero, SectionImage, SectionMarkdown}

// NewSection returns a section of the given type filled with editor
// defaults. Unknown types fall back to a text section.
func NewSection(typ string) Section {
	switch typ {
	case SectionHero:
		return Section{Type: SectionHero, Props: map[string]any{
			"title":    "Hero title",
			"subtitle": "An inspiring subtitle",
			"cta":      "Learn more",
			"ctaLink":  "#",
		}}
	case SectionImage:
		return Section{Type: SectionImage, Props: map[string]any{
			"src":     "https://placehold.co/800x400",
			"alt":     "Image",
			"caption": "",
		}}
	case SectionMarkdown:
		return Section{Type: SectionMarkdown, Props: map[string]any{
			"content": "New paragraph.",
		}}
	default:
		return Section{Type: SectionText, Props: map[string]any{
			"content": "<p>New paragraph.</p>",
		}}
	}
}

// Prop returns props[key] as a string. Missing keys yield "", non-string
// scalars are formatted.
func (s Section) Prop(key string) string {
	v, ok := s.Props[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// clone copies the top level of the props map.
func (s Section) clone() Section {
	props := make(map[string]any, len(s.Props))
	for k, v := range s.Props {
		props[k] = v
	}
	return Section{Type: s.Type, Props: props}
}

// Clone returns a copy of p with its own sections slice and props maps.
func (p Page) Clone() Page {
	out := Page{Slug: p.Slug, Title: p.Title, Sections: make([]Section, len(p.Sections))}
	for i, s := range p.Sections {
		out.Sections[i] = s.clone()
	}
	return out
}
