package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sweetshop/sweet-shop/internal/models"
	"github.com/sweetshop/sweet-shop/internal/repo"
	"github.com/sweetshop/sweet-shop/internal/token"
)

const userContextKey = "currentUser"

// Guard resolves the acting user from the Authorization header and
// makes it available to handlers via CallerFrom.
type Guard struct {
	Repo   *repo.GormRepo
	Tokens *token.Service
}

func (g *Guard) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		ident, err := g.Tokens.Validate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		// The subject may have disappeared since the token was issued.
		user, err := g.Repo.GetUserByEmail(c.Request().Context(), ident.Email)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdmin composes after RequireLogin and rejects non-admin
// callers before the handler runs, so a 403 never reveals whether the
// target entity exists.
func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if user := CallerFrom(c); user == nil || !user.IsAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin privileges required")
		}
		return next(c)
	}
}

func CallerFrom(c echo.Context) *models.User {
	if user, ok := c.Get(userContextKey).(*models.User); ok {
		return user
	}
	return nil
}
