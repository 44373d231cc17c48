package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// CSRFHeader and CSRFField are where a request may carry its token; the
// header wins when both are present.
const (
	CSRFHeader = "X-CSRF-Token"
	CSRFField  = "csrf_token"
)

// NewCSRF validates the anti-CSRF token on every state-changing request.
// Safe methods pass through. The client sees one generic 403 whether the
// token was missing or wrong; the audit log keeps the distinction.
func NewCSRF(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			token := c.Request().Header.Get(CSRFHeader)
			if token == "" {
				token = c.FormValue(CSRFField)
			}
			if err := CurrentSession(c).VerifyCSRF(token); err != nil {
				log.Warn().
					Err(err).
					Str("ip", c.RealIP()).
					Str("path", c.Path()).
					Msg("csrf rejection")
				return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid request"})
			}
			return next(c)
		}
	}
}
