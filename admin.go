package clower

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/clower/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}

	token, claims, err := a.authenticate(c.Request().Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("login failed", zap.String("ip", ip), zap.String("username", req.Username))
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return err
	}
	a.loginLimiter.Reset(ip)

	if err := setPreviewSession(c, claims.Username); err != nil {
		return err
	}
	a.Logger.Info("login", zap.String("ip", ip), zap.String("username", claims.Username))
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}

// authenticate checks the credentials against the stored admin account and
// issues a token.
func (a *App) authenticate(ctx context.Context, username, password string) (string, *auth.Claims, error) {
	st, err := a.Settings.Get(ctx)
	if err != nil {
		return "", nil, err
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(st.Admin.Username)) == 1
	// Always verify so a wrong username costs the same as a wrong password.
	passOK := a.hasher.Verify(st.Admin.PasswordHash, password)
	if !userOK || !passOK {
		return "", nil, auth.ErrInvalidCredentials
	}
	return a.Tokens.Issue(st.Admin.Username)
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearPreviewSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{Message: "Logged out"})
}
