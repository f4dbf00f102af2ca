package clower

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/clower/content"
)

var errPageNotFound = echo.NewHTTPError(http.StatusNotFound, "Page not found")

func (a *App) handleListPages(c echo.Context) error {
	pages, err := a.Pages.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pages)
}

func (a *App) handleGetPage(c echo.Context) error {
	p, err := a.Pages.Get(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, content.ErrNotFound) {
		return errPageNotFound
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// handleCreatePage stores a page. An existing page with the same slug is
// replaced.
func (a *App) handleCreatePage(c echo.Context) error {
	var p content.Page
	if err := bindJSON(c, &p); err != nil {
		return err
	}
	if p.Slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug is required")
	}
	p = p.Clone()
	ctx := c.Request().Context()
	if err := a.Pages.Put(ctx, p); err != nil {
		return err
	}
	if err := a.commit(ctx, Event{Kind: EventPageSaved, Slug: p.Slug, User: CurrentUser(c)}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// handleUpdatePage writes the page under the slug in the body and, when
// that differs from the slug in the path, removes the old page.
func (a *App) handleUpdatePage(c echo.Context) error {
	oldSlug := c.Param("slug")
	var p content.Page
	if err := bindJSON(c, &p); err != nil {
		return err
	}
	if p.Slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug is required")
	}
	if oldSlug == content.IndexSlug && p.Slug != content.IndexSlug {
		return echo.NewHTTPError(http.StatusBadRequest, "Home page cannot be renamed")
	}
	p = p.Clone()
	ctx := c.Request().Context()
	if err := a.Pages.Put(ctx, p); err != nil {
		return err
	}
	if oldSlug != p.Slug {
		if err := a.Pages.Delete(ctx, oldSlug); err != nil && !errors.Is(err, content.ErrNotFound) {
			return err
		}
	}
	if err := a.commit(ctx, Event{Kind: EventPageSaved, Slug: p.Slug, User: CurrentUser(c)}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) handleDeletePage(c echo.Context) error {
	slug := c.Param("slug")
	if slug == content.IndexSlug {
		return echo.NewHTTPError(http.StatusBadRequest, "Home page cannot be deleted")
	}
	ctx := c.Request().Context()
	err := a.Pages.Delete(ctx, slug)
	if errors.Is(err, content.ErrNotFound) {
		return errPageNotFound
	}
	if err != nil {
		return err
	}
	if err := a.commit(ctx, Event{Kind: EventPageDeleted, Slug: slug, User: CurrentUser(c)}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{Message: "Deleted"})
}

func (a *App) handleGetTheme(c echo.Context) error {
	t, err := a.Themes.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (a *App) handlePutTheme(c echo.Context) error {
	var t content.Theme
	if err := bindJSON(c, &t); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := a.Themes.Put(ctx, t); err != nil {
		return err
	}
	if err := a.commit(ctx, Event{Kind: EventThemeSaved, User: CurrentUser(c)}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (a *App) handleGetSettings(c echo.Context) error {
	st, err := a.Settings.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st.Public())
}

// handlePutSettings merges the update into the stored settings. The site
// is not regenerated since settings do not affect the output.
func (a *App) handlePutSettings(c echo.Context) error {
	var u content.SettingsUpdate
	if err := bindJSON(c, &u); err != nil {
		return err
	}
	st, err := a.Settings.Update(c.Request().Context(), u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st.Public())
}

func (a *App) handleGenerate(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := a.Generator.Generate(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate site: "+err.Error()).SetInternal(err)
	}
	a.runHooks(ctx, Event{Kind: EventGenerated, User: CurrentUser(c)})
	return c.JSON(http.StatusOK, message{Message: "Site generated", Pages: &n})
}

func (a *App) handleDeploy(c echo.Context) error {
	if err := a.Deployer.Deploy(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to deploy site: "+err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, message{Message: "Deployment triggered"})
}
