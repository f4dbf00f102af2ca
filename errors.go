package clower

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/clower/auth"
	"github.com/eringen/clower/content"
	"github.com/eringen/clower/deploy"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Message string `json:"message"`
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := classifyError(err)
	if code >= http.StatusInternalServerError {
		a.Logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Message: msg})
}

// classifyError maps domain errors to a status code and a client-facing
// message.
func classifyError(err error) (int, string) {
	var (
		he *echo.HTTPError
		ve *content.ValidationError
		ce *deploy.ConfigError
		de *deploy.DeployError
	)
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		if he.Message != nil {
			return he.Code, fmt.Sprint(he.Message)
		}
		return he.Code, http.StatusText(he.Code)
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.As(err, &ce):
		return http.StatusInternalServerError, ce.Error()
	case errors.As(err, &de):
		return http.StatusInternalServerError, de.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
