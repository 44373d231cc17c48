package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/repository"
)

// ReportHandler serves management reports.
type ReportHandler struct {
	DB *sql.DB
}

func NewReportHandler(db *sql.DB) *ReportHandler { return &ReportHandler{DB: db} }

// Sales aggregates paid orders by menu category over a closing-time window.
// from/to accept YYYY-MM-DD or RFC 3339; the default window is today.
func (h *ReportHandler) Sales(c echo.Context) error {
	now := time.Now().UTC()
	from, ok := parseReportTime(c.QueryParam("from"), now.Truncate(24*time.Hour))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
	}
	to, ok := parseReportTime(c.QueryParam("to"), from.Add(24*time.Hour))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
	}
	if !to.After(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty window"})
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		sales, err := repository.NewOrderRepo(conn).SalesByCategory(ctx, from, to)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reports unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"from":  from.Format(time.RFC3339),
			"to":    to.Format(time.RFC3339),
			"sales": sales,
		})
	})
}

func parseReportTime(raw string, def time.Time) (time.Time, bool) {
	if raw == "" {
		return def, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
