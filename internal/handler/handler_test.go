package handler_test

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ederavi/bistro-pos/internal/auth"
	"github.com/ederavi/bistro-pos/internal/database/dbtest"
	"github.com/ederavi/bistro-pos/internal/handler"
	"github.com/ederavi/bistro-pos/internal/middleware"
	"github.com/ederavi/bistro-pos/internal/queue"
	"github.com/ederavi/bistro-pos/internal/session"
)

const testPassword = "open-sesame!"

func testHash(t *testing.T) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// scriptStore answers the queries the login flow issues, keyed by the table
// each statement reads.
func scriptStore(rec *dbtest.Recorder, passwordHash string) {
	rec.OnQuery = func(query string, _ []driver.Value) ([]string, [][]driver.Value) {
		switch {
		case strings.Contains(query, "FROM users"):
			return []string{"id", "username", "email", "password_hash", "display_name", "is_active", "failed_logins"},
				[][]driver.Value{{int64(9), "casey", "casey@example.com", passwordHash, "Casey", int64(1), int64(0)}}
		case strings.Contains(query, "FROM roles"):
			return []string{"name"}, [][]driver.Value{{"cashier"}}
		case strings.Contains(query, "FROM permissions"):
			return []string{"name"}, [][]driver.Value{{"orders.create"}, {"orders.read"}}
		}
		return nil, nil
	}
}

func newAuthEnv(t *testing.T) (*echo.Echo, *dbtest.Recorder, *session.Manager) {
	t.Helper()
	db, rec := dbtest.New()
	scriptStore(rec, testHash(t))
	mgr := session.NewManager(session.NewMemoryStore(), time.Hour, 5*time.Minute)
	h := handler.NewAuthHandler(db, mgr, auth.Config{
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		RememberTTL:      30 * 24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		ResetSecret:      "reset-secret",
		ResetTTL:         30 * time.Minute,
	}, zerolog.Nop(), false, true)

	e := echo.New()
	e.Validator = handler.NewValidator()
	sess := middleware.NewSession(mgr, false)
	e.POST("/v1/auth/login", h.Login, sess)
	e.GET("/v1/auth/me", h.Me, sess)
	e.GET("/v1/auth/flash", h.Flash, sess)
	return e, rec, mgr
}

func postJSON(e *echo.Echo, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginEndpointSuccess(t *testing.T) {
	e, _, mgr := newAuthEnv(t)

	rec := postJSON(e, "/v1/auth/login", `{"identifier":"casey","password":"open-sesame!"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
		Roles     []string `json:"roles"`
		CSRFToken string   `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(9), resp.User.ID)
	require.Equal(t, []string{"cashier"}, resp.Roles)
	require.Len(t, resp.CSRFToken, 64)

	// The cookie carries the post-rotation session id and the payload is
	// authenticated in the store.
	sc := cookieNamed(rec.Result(), middleware.SessionCookie)
	require.NotNil(t, sc)
	stored, err := mgr.Load(context.Background(), sc.Value)
	require.NoError(t, err)
	require.True(t, stored.Authenticated())
	require.Equal(t, int64(9), *stored.UserID)
	require.Equal(t, []string{"orders.create", "orders.read"}, stored.Permissions)
}

func TestLoginEndpointRememberCookie(t *testing.T) {
	e, rec, _ := newAuthEnv(t)

	res := postJSON(e, "/v1/auth/login", `{"identifier":"casey","password":"open-sesame!","remember":true}`)
	require.Equal(t, http.StatusOK, res.Code)
	rc := cookieNamed(res.Result(), middleware.RememberCookie)
	require.NotNil(t, rc)
	require.Len(t, rc.Value, 64)
	require.True(t, rc.HttpOnly)

	inserted := false
	for _, ex := range rec.Execs {
		if strings.HasPrefix(ex.Query, "INSERT INTO remember_tokens") {
			inserted = true
			// stored value is the hash, not the cookie secret
			require.NotContains(t, ex.Args, driver.Value(rc.Value))
		}
	}
	require.True(t, inserted)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	e, rec, _ := newAuthEnv(t)

	res := postJSON(e, "/v1/auth/login", `{"identifier":"casey","password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.JSONEq(t, `{"error":"invalid credentials"}`, res.Body.String())

	// failure counter persisted
	require.Equal(t, "UPDATE users SET failed_logins = ? WHERE id = ?", rec.LastExec().Query)

	// the rejection queued a flash message, readable exactly once
	sc := cookieNamed(res.Result(), middleware.SessionCookie)
	require.NotNil(t, sc)
	flashReq := httptest.NewRequest(http.MethodGet, "/v1/auth/flash", nil)
	flashReq.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sc.Value})
	flashRec := httptest.NewRecorder()
	e.ServeHTTP(flashRec, flashReq)
	require.JSONEq(t, `{"error":["Invalid credentials."]}`, flashRec.Body.String())

	again := httptest.NewRequest(http.MethodGet, "/v1/auth/flash", nil)
	again.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sc.Value})
	againRec := httptest.NewRecorder()
	e.ServeHTTP(againRec, again)
	require.JSONEq(t, `{}`, againRec.Body.String())
}

func TestLoginEndpointValidation(t *testing.T) {
	e, _, _ := newAuthEnv(t)
	require.Equal(t, http.StatusBadRequest, postJSON(e, "/v1/auth/login", `{"identifier":"casey"}`).Code)
}

func TestMeRequiresLogin(t *testing.T) {
	e, _, _ := newAuthEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func newOrderEnv(t *testing.T) (*echo.Echo, *dbtest.Recorder, *session.Manager, *[]queue.OrderPlacedEvent) {
	t.Helper()
	db, rec := dbtest.New()
	mgr := session.NewManager(session.NewMemoryStore(), time.Hour, 5*time.Minute)
	published := &[]queue.OrderPlacedEvent{}
	h := handler.NewOrderHandler(db, zerolog.Nop())
	h.Publish = func(_ context.Context, ev queue.OrderPlacedEvent) error {
		*published = append(*published, ev)
		return nil
	}

	e := echo.New()
	e.Validator = handler.NewValidator()
	sess := middleware.NewSession(mgr, false)
	e.POST("/v1/orders", h.Create, sess, middleware.RequirePermission("orders.create"))
	e.GET("/v1/orders/open", h.ListOpen, sess, middleware.RequirePermission("orders.read"))
	return e, rec, mgr, published
}

func authedCookie(t *testing.T, mgr *session.Manager, perms ...string) *http.Cookie {
	t.Helper()
	sess := mgr.New()
	sess.Authenticate(9, []string{"cashier"}, perms)
	require.NoError(t, mgr.Save(context.Background(), sess))
	return &http.Cookie{Name: middleware.SessionCookie, Value: sess.ID}
}

func TestCreateOrderEndpoint(t *testing.T) {
	e, rec, mgr, published := newOrderEnv(t)
	rec.OnQuery = func(_ string, args []driver.Value) ([]string, [][]driver.Value) {
		return []string{"id", "category_id", "name", "price_cents", "is_available"},
			[][]driver.Value{{args[0], int64(1), "Onion Soup", int64(450), int64(1)}}
	}
	rec.OnExec = func(query string, _ []driver.Value) (int64, int64) {
		if strings.HasPrefix(query, "INSERT INTO orders") {
			return 51, 1
		}
		return 0, 1
	}

	res := postJSON(e, "/v1/orders",
		`{"table_id":4,"lines":[{"item_id":11,"quantity":2},{"item_id":12,"quantity":1,"notes":"no salt"}]}`,
		authedCookie(t, mgr, "orders.create"))
	require.Equal(t, http.StatusCreated, res.Code)
	require.JSONEq(t, `{"id":51,"total_cents":1350}`, res.Body.String())

	require.Equal(t, 1, rec.Begins)
	require.Equal(t, 1, rec.Commits)
	require.Len(t, *published, 1)
	ev := (*published)[0]
	require.Equal(t, int64(51), ev.OrderID)
	require.Equal(t, int64(9), ev.UserID)
	require.Equal(t, 3, ev.ItemCount)
	require.Equal(t, int64(1350), ev.TotalCents)
}

func TestCreateOrderRequiresPermission(t *testing.T) {
	e, _, mgr, _ := newOrderEnv(t)
	res := postJSON(e, "/v1/orders",
		`{"table_id":4,"lines":[{"item_id":11,"quantity":1}]}`,
		authedCookie(t, mgr, "orders.read"))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestCreateOrderRejectsEmptyLines(t *testing.T) {
	e, _, mgr, _ := newOrderEnv(t)
	res := postJSON(e, "/v1/orders", `{"table_id":4,"lines":[]}`,
		authedCookie(t, mgr, "orders.create"))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPublicMenuGroupsByCategory(t *testing.T) {
	db, rec := dbtest.New()
	rec.OnQuery = func(query string, _ []driver.Value) ([]string, [][]driver.Value) {
		if strings.Contains(query, "FROM menu_categories") {
			return []string{"id", "name", "position"},
				[][]driver.Value{{int64(1), "Starters", int64(0)}, {int64(2), "Mains", int64(1)}}
		}
		return []string{"id", "category_id", "name", "price_cents", "is_available"},
			[][]driver.Value{
				{int64(11), int64(1), "Onion Soup", int64(450), int64(1)},
				{int64(12), int64(2), "Steak Frites", int64(700), int64(1)},
			}
	}
	h := handler.NewMenuHandler(db)
	e := echo.New()
	e.Validator = handler.NewValidator()
	e.GET("/v1/menu", h.PublicMenu)

	req := httptest.NewRequest(http.MethodGet, "/v1/menu", nil)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var resp struct {
		Menu []struct {
			Category struct {
				Name string `json:"name"`
			} `json:"category"`
			Items []struct {
				Name string `json:"name"`
			} `json:"items"`
		} `json:"menu"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	require.Len(t, resp.Menu, 2)
	require.Equal(t, "Starters", resp.Menu[0].Category.Name)
	require.Len(t, resp.Menu[0].Items, 1)
	require.Equal(t, "Onion Soup", resp.Menu[0].Items[0].Name)
}

func TestSalesReportWindowValidation(t *testing.T) {
	db, _ := dbtest.New()
	h := handler.NewReportHandler(db)
	e := echo.New()
	e.GET("/v1/reports/sales", h.Sales)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/sales?from=yesterday", nil)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/reports/sales?from=2026-03-02&to=2026-03-01", nil)
	res = httptest.NewRecorder()
	e.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}
