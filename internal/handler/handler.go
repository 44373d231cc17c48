// Package handler contains the HTTP handlers. Each handler struct bundles
// its dependencies; database work runs on a connection checked out for the
// duration of the request.
package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ederavi/bistro-pos/internal/database"
)

// Validator adapts go-playground/validator to echo's Validator interface.
// Struct tag failures surface as one generic 400; field-level detail stays
// in the error for logging.
type Validator struct{ v *validator.Validate }

func NewValidator() *Validator { return &Validator{v: validator.New()} }

func (val *Validator) Validate(i interface{}) error {
	if err := val.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
	}
	return nil
}

// dbTimeout bounds every request's database work.
const dbTimeout = 5 * time.Second

// withConn checks a connection out of the pool, runs fn on it and releases
// it. The connection owns LAST_INSERT_ID and transaction state for the
// request.
func withConn(c echo.Context, db *sql.DB, fn func(ctx context.Context, conn *database.Conn) error) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	conn, err := database.NewConn(ctx, db)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database unavailable"})
	}
	defer conn.Close()
	return fn(ctx, conn)
}
