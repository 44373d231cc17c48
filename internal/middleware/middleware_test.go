package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ederavi/bistro-pos/internal/auth"
	"github.com/ederavi/bistro-pos/internal/auth/storefakes"
	"github.com/ederavi/bistro-pos/internal/middleware"
	"github.com/ederavi/bistro-pos/internal/model"
	"github.com/ederavi/bistro-pos/internal/session"
	"github.com/ederavi/bistro-pos/internal/utils"
)

func newManager() *session.Manager {
	return session.NewManager(session.NewMemoryStore(), time.Hour, 5*time.Minute)
}

func sessionCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestSessionMiddlewareCreatesAndPersists(t *testing.T) {
	mgr := newManager()
	e := echo.New()
	e.GET("/t", func(c echo.Context) error {
		return c.String(http.StatusOK, middleware.CurrentSession(c).CSRF())
	}, middleware.NewSession(mgr, false))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec.Result())
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	token := rec.Body.String()
	require.Len(t, token, 64)

	// Same cookie, same session, same token.
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: cookie.Value})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, token, rec.Body.String())

	stored, err := mgr.Load(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.Equal(t, token, stored.CSRFToken)
}

func TestSessionMiddlewareDiscardsStaleCookie(t *testing.T) {
	mgr := newManager()
	e := echo.New()
	e.GET("/t", func(c echo.Context) error {
		return c.String(http.StatusOK, middleware.CurrentSession(c).ID)
	}, middleware.NewSession(mgr, false))

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "long-gone"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, "long-gone", rec.Body.String())
}

func TestCSRFGate(t *testing.T) {
	mgr := newManager()
	sess := mgr.New()
	token := sess.CSRF()
	require.NoError(t, mgr.Save(context.Background(), sess))

	e := echo.New()
	e.POST("/t", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, middleware.NewSession(mgr, false), middleware.NewCSRF(zerolog.Nop()))

	send := func(headerToken, formToken string) *httptest.ResponseRecorder {
		var body *strings.Reader
		if formToken != "" {
			body = strings.NewReader(url.Values{middleware.CSRFField: {formToken}}.Encode())
		} else {
			body = strings.NewReader("")
		}
		req := httptest.NewRequest(http.MethodPost, "/t", body)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID})
		if headerToken != "" {
			req.Header.Set(middleware.CSRFHeader, headerToken)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusForbidden, send("", "").Code)
	require.Equal(t, http.StatusForbidden, send("wrong", "").Code)
	require.Equal(t, http.StatusNoContent, send(token, "").Code)
	require.Equal(t, http.StatusNoContent, send("", token).Code)

	// Missing and mismatched tokens read identically to the client.
	require.JSONEq(t, `{"error":"invalid request"}`, send("", "").Body.String())
	require.JSONEq(t, `{"error":"invalid request"}`, send("wrong", "").Body.String())
}

func newAuthService(mgr *session.Manager) (*auth.Service, *storefakes.FakeUserStore) {
	users := storefakes.New()
	svc := auth.NewService(users, mgr, auth.Config{
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		RememberTTL:      30 * 24 * time.Hour,
	}, zerolog.Nop())
	return svc, users
}

func TestRoleGate(t *testing.T) {
	mgr := newManager()

	e := echo.New()
	e.GET("/reports", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.NewSession(mgr, false), middleware.RequireRole("manager", "owner"))

	send := func(prep func(*session.Session)) *httptest.ResponseRecorder {
		sess := mgr.New()
		if prep != nil {
			prep(sess)
		}
		if err := mgr.Save(context.Background(), sess); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, send(nil).Code)
	require.Equal(t, http.StatusForbidden, send(func(s *session.Session) {
		s.Authenticate(1, []string{"cashier"}, nil)
	}).Code)
	require.Equal(t, http.StatusOK, send(func(s *session.Session) {
		s.Authenticate(2, []string{"manager"}, nil)
	}).Code)
}

func TestPermissionGate(t *testing.T) {
	mgr := newManager()

	e := echo.New()
	e.GET("/orders", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.NewSession(mgr, false), middleware.RequirePermission("orders.read"))

	sess := mgr.New()
	sess.Authenticate(1, []string{"cashier"}, []string{"orders.read"})
	require.NoError(t, mgr.Save(context.Background(), sess))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRememberLoginRestoresAnonymousSession(t *testing.T) {
	mgr := newManager()
	svc, users := newAuthService(mgr)
	users.AddUser(&model.User{ID: 7, Username: "casey", Email: "casey@example.com", IsActive: true},
		[]string{"cashier"}, []string{"orders.read"})
	raw := "remembered-secret"
	require.NoError(t, users.InsertRememberToken(context.Background(), 7, utils.HashSecret(raw), time.Now().Add(time.Hour)))
	factory := func(context.Context) (*auth.Service, func(), error) {
		return svc, func() {}, nil
	}

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		if middleware.CurrentSession(c).Authenticated() {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusUnauthorized)
	}, middleware.NewSession(mgr, false), middleware.NewRememberLogin(factory))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RememberCookie, Value: raw})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRememberLoginClearsDeadCookie(t *testing.T) {
	mgr := newManager()
	svc, _ := newAuthService(mgr)
	factory := func(context.Context) (*auth.Service, func(), error) {
		return svc, func() {}, nil
	}

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.NewSession(mgr, false), middleware.NewRememberLogin(factory))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RememberCookie, Value: "expired-or-forged"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.RememberCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)
}
