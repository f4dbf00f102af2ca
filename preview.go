package clower

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/clower/content"
)

// handlePreview renders a stored page on the fly. It authenticates with the
// session cookie set at login, since an iframe cannot send a bearer token.
func (a *App) handlePreview(c echo.Context) error {
	if !hasPreviewSession(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Login required")
	}
	ctx := c.Request().Context()
	p, err := a.Pages.Get(ctx, c.Param("slug"))
	if errors.Is(err, content.ErrNotFound) {
		return errPageNotFound
	}
	if err != nil {
		return err
	}
	cmp, err := a.Generator.Page(ctx, p)
	if err != nil {
		return err
	}
	return Render(c, cmp)
}
