package clower

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// message is the acknowledgement body of actions without a resource.
type message struct {
	Message string `json:"message"`
	Pages   *int   `json:"pages,omitempty"`
}

// bindJSON decodes the request body into v. Unlike echo's Bind it ignores
// path and query parameters.
func bindJSON(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(v); err != nil {
		var (
			maxErr *http.MaxBytesError
			he     *echo.HTTPError
		)
		if errors.As(err, &maxErr) {
			return echo.ErrStatusRequestEntityTooLarge
		}
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body").SetInternal(err)
	}
	return nil
}

// bearerToken extracts the credential from an Authorization header. A
// header without a scheme is taken as the bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	return header
}
