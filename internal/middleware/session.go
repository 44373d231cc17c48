// Package middleware provides shared request processing for handlers:
// session loading, CSRF enforcement, authentication gates, login rate
// limiting and the public menu response cache.
package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ederavi/bistro-pos/internal/session"
)

// SessionCookie is the name of the cookie carrying the session identifier.
const SessionCookie = "pos_session"

// sessionKey is the echo context key the loaded session is stored under.
const sessionKey = "session"

// CurrentSession returns the request's session. The session middleware
// guarantees one exists on every route it wraps.
func CurrentSession(c echo.Context) *session.Session {
	s, _ := c.Get(sessionKey).(*session.Session)
	return s
}

// NewSession loads the visitor's session from the cookie, creating a fresh
// one when the cookie is absent or stale, rotates the identifier when it has
// been idle too long, and persists the (possibly mutated) payload after the
// handler runs. The cookie is rewritten on every response so identifier
// rotations reach the client.
func NewSession(mgr *session.Manager, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var sess *session.Session
			if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
				sess, err = mgr.Load(ctx, cookie.Value)
				if err != nil && !errors.Is(err, session.ErrNotFound) {
					return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
				}
			}
			if sess == nil {
				sess = mgr.New()
			}
			if _, err := mgr.RotateIfIdle(ctx, sess); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
			}
			c.Set(sessionKey, sess)

			handlerErr := next(c)

			// Save even when the handler failed: flash messages and CSRF
			// tokens minted while rendering the error must survive.
			if err := mgr.Save(ctx, sess); err != nil && handlerErr == nil {
				handlerErr = echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
			}
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			return handlerErr
		}
	}
}
