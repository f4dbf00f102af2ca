package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eringen/clower/storage"
)

const themeKey = "theme"

// ThemeStore reads and writes the single site theme.
type ThemeStore struct {
	b storage.Backend
}

// NewThemeStore returns a ThemeStore over b.
func NewThemeStore(b storage.Backend) *ThemeStore {
	return &ThemeStore{b: b}
}

// Get returns the current theme. On first run the default theme is
// written and returned, so reads never fail for a missing document.
func (s *ThemeStore) Get(ctx context.Context) (Theme, error) {
	body, err := s.b.Get(ctx, configCollection, themeKey)
	if errors.Is(err, storage.ErrNotFound) {
		t := DefaultTheme()
		if err := s.Put(ctx, t); err != nil {
			return Theme{}, err
		}
		return t, nil
	}
	if err != nil {
		return Theme{}, fmt.Errorf("get theme: %w", err)
	}
	var t Theme
	if err := json.Unmarshal(body, &t); err != nil {
		return Theme{}, fmt.Errorf("decode theme: %w", err)
	}
	return t, nil
}

// Put replaces the theme.
func (s *ThemeStore) Put(ctx context.Context, t Theme) error {
	body, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if err := s.b.Put(ctx, configCollection, themeKey, body); err != nil {
		return fmt.Errorf("put theme: %w", err)
	}
	return nil
}
