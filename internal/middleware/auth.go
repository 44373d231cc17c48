package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ederavi/bistro-pos/internal/auth"
)

// RememberCookie carries the raw remember-me secret between visits.
const RememberCookie = "pos_remember"

// AuthFactory yields an identity service bound to a request-scoped database
// connection, plus a release function. The service lives no longer than the
// request.
type AuthFactory func(ctx context.Context) (*auth.Service, func(), error)

// RequireLogin rejects requests whose session carries no user. Gates read
// only the session's login-time caches, so they cost no database round trip.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CurrentSession(c).Authenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}

// RequireRole admits a user holding any of the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := CurrentSession(c)
			if !sess.Authenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			for _, role := range roles {
				if sess.HasRole(role) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
	}
}

// RequirePermission admits a user whose permission cache grants the name.
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := CurrentSession(c)
			if !sess.Authenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			if !sess.Can(permission) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// NewRememberLogin restores a login from the remember cookie when the
// session is anonymous. A dead token gets its cookie cleared so the client
// stops presenting it.
func NewRememberLogin(factory AuthFactory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := CurrentSession(c)
			if sess.Authenticated() {
				return next(c)
			}
			cookie, err := c.Cookie(RememberCookie)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			svc, release, err := factory(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
			}
			defer release()
			res, err := svc.LoginWithRememberToken(ctx, sess, cookie.Value)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
			}
			if !res.OK {
				c.SetCookie(&http.Cookie{
					Name:     RememberCookie,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
				})
			}
			return next(c)
		}
	}
}
