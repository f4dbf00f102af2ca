// Package content holds the site data model and the stores that persist it
// on a storage.Backend: one document per page, one for the theme and one
// for the settings.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eringen/clower/storage"
)

const (
	pagesCollection  = "pages"
	configCollection = "config"
)

// PageStore reads and writes pages keyed by slug.
type PageStore struct {
	b storage.Backend
}

// NewPageStore returns a PageStore over b.
func NewPageStore(b storage.Backend) *PageStore {
	return &PageStore{b: b}
}

// List returns every stored page in backend order.
func (s *PageStore) List(ctx context.Context) ([]Page, error) {
	docs, err := s.b.List(ctx, pagesCollection)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]Page, 0, len(docs))
	for _, d := range docs {
		p, err := decodePage(d.Body)
		if err != nil {
			return nil, fmt.Errorf("decode page %s: %w", d.Key, err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Get returns the page stored under slug.
func (s *PageStore) Get(ctx context.Context, slug string) (Page, error) {
	if err := ValidateSlug(slug); err != nil {
		return Page{}, ErrNotFound
	}
	body, err := s.b.Get(ctx, pagesCollection, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page %s: %w", slug, err)
	}
	p, err := decodePage(body)
	if err != nil {
		return Page{}, fmt.Errorf("decode page %s: %w", slug, err)
	}
	return p, nil
}

// Put writes p under p.Slug, replacing any existing page with that slug.
func (s *PageStore) Put(ctx context.Context, p Page) error {
	if err := ValidateSlug(p.Slug); err != nil {
		return err
	}
	// Clone also turns nil sections and props into empty ones.
	p = p.Clone()
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := s.b.Put(ctx, pagesCollection, p.Slug, body); err != nil {
		return fmt.Errorf("put page %s: %w", p.Slug, err)
	}
	return nil
}

// Delete removes the page stored under slug.
func (s *PageStore) Delete(ctx context.Context, slug string) error {
	if err := ValidateSlug(slug); err != nil {
		return ErrNotFound
	}
	err := s.b.Delete(ctx, pagesCollection, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete page %s: %w", slug, err)
	}
	return nil
}

// EnsureIndex creates the home page when it does not exist yet.
func (s *PageStore) EnsureIndex(ctx context.Context) (bool, error) {
	if _, err := s.Get(ctx, IndexSlug); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	home := Page{
		Slug:  IndexSlug,
		Title: "Home",
		Sections: []Section{
			NewSection(SectionHero),
			{Type: SectionText, Props: map[string]any{"content": "<p>Welcome to your new site.</p>"}},
		},
	}
	return true, s.Put(ctx, home)
}

func decodePage(body []byte) (Page, error) {
	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return Page{}, err
	}
	if p.Sections == nil {
		p.Sections = []Section{}
	}
	return p, nil
}
