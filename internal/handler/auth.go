package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ederavi/bistro-pos/internal/auth"
	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/middleware"
	"github.com/ederavi/bistro-pos/internal/repository"
	"github.com/ederavi/bistro-pos/internal/session"
	"github.com/ederavi/bistro-pos/internal/utils"
)

// AuthHandler bundles dependencies for the login, logout and password
// endpoints. The identity service itself is built per request, bound to the
// request's database connection.
type AuthHandler struct {
	DB       *sql.DB
	Sessions *session.Manager
	Cfg      auth.Config
	Log      zerolog.Logger
	Secure   bool // remember cookie Secure flag
	Dev      bool // expose reset tokens in responses outside prod
}

func NewAuthHandler(db *sql.DB, sessions *session.Manager, cfg auth.Config, log zerolog.Logger, secure, dev bool) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions, Cfg: cfg, Log: log, Secure: secure, Dev: dev}
}

func (h *AuthHandler) service(conn *database.Conn) *auth.Service {
	return auth.NewService(repository.NewUserRepo(conn), h.Sessions, h.Cfg, h.Log)
}

// ----- DTOs -----

type loginReq struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Remember   bool   `json:"remember"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type resetRequestReq struct {
	Identifier string `json:"identifier" validate:"required"`
}

type resetConfirmReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type loginUserPart struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type loginResp struct {
	User      loginUserPart `json:"user"`
	Roles     []string      `json:"roles"`
	CSRFToken string        `json:"csrf_token"`
}

// Login verifies the identifier/secret pair. Every rejection reads the same
// to the client, whatever the real reason; the audit trail lives in the
// service's logs.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sess := middleware.CurrentSession(c)
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		res, err := h.service(conn).AttemptLogin(ctx, sess, req.Identifier, req.Password, req.Remember)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login unavailable"})
		}
		if !res.OK {
			sess.AddFlash(session.FlashError, "Invalid credentials.")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		if res.RememberSecret != "" {
			c.SetCookie(&http.Cookie{
				Name:     middleware.RememberCookie,
				Value:    res.RememberSecret,
				Path:     "/",
				MaxAge:   int(h.Cfg.RememberTTL.Seconds()),
				HttpOnly: true,
				Secure:   h.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		sess.AddFlash(session.FlashSuccess, "Signed in.")
		return c.JSON(http.StatusOK, loginResp{
			User: loginUserPart{
				ID:          res.User.ID,
				Username:    res.User.Username,
				DisplayName: res.User.DisplayName,
			},
			Roles:     sess.Roles,
			CSRFToken: sess.CSRF(),
		})
	})
}

// Logout revokes the remember token, clears the identity payload and
// rotates the session identifier.
func (h *AuthHandler) Logout(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		if err := h.service(conn).Logout(ctx, sess); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout unavailable"})
		}
		c.SetCookie(&http.Cookie{
			Name:     middleware.RememberCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		return c.NoContent(http.StatusNoContent)
	})
}

// Me reports the session's identity payload together with a CSRF token the
// client can attach to subsequent writes.
func (h *AuthHandler) Me(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	if !sess.Authenticated() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":     *sess.UserID,
		"roles":       sess.Roles,
		"permissions": sess.Permissions,
		"csrf_token":  sess.CSRF(),
	})
}

// Flash drains the session's one-time messages. A second call returns empty
// queues.
func (h *AuthHandler) Flash(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	out := echo.Map{}
	for _, sev := range []string{session.FlashSuccess, session.FlashError, session.FlashWarning, session.FlashInfo} {
		if msgs := sess.ConsumeFlash(sev); len(msgs) > 0 {
			out[sev] = msgs
		}
	}
	return c.JSON(http.StatusOK, out)
}

// ChangePassword re-verifies the current secret before storing a new hash.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sess := middleware.CurrentSession(c)
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		err := h.service(conn).ChangePassword(ctx, sess, req.CurrentPassword, req.NewPassword)
		if errors.Is(err, auth.ErrUnauthenticated) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change unavailable"})
		}
		sess.AddFlash(session.FlashSuccess, "Password updated.")
		return c.NoContent(http.StatusNoContent)
	})
}

// RequestPasswordReset mints a reset token. The response never reveals
// whether the identifier exists; outside prod the token rides along for
// manual delivery, in prod it goes out of band.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		token, err := h.service(conn).RequestPasswordReset(ctx, req.Identifier)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset unavailable"})
		}
		resp := echo.Map{"status": "accepted"}
		if h.Dev && token != "" {
			resp["reset_token"] = token
		}
		return c.JSON(http.StatusAccepted, resp)
	})
}

// ResetPassword trades a valid reset token for a new password hash.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		err := h.service(conn).ResetPassword(ctx, req.Token, req.NewPassword)
		if errors.Is(err, utils.ErrResetTokenInvalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset unavailable"})
		}
		return c.NoContent(http.StatusNoContent)
	})
}
