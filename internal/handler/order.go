package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/middleware"
	"github.com/ederavi/bistro-pos/internal/queue"
	"github.com/ederavi/bistro-pos/internal/repository"
	queuepublisher "github.com/ederavi/bistro-pos/internal/service"
)

// OrderHandler serves guest check endpoints for the floor staff.
type OrderHandler struct {
	DB  *sql.DB
	Log zerolog.Logger
	// Publish sends the order.placed event. Swappable in tests; nil
	// disables publication.
	Publish func(ctx context.Context, ev queue.OrderPlacedEvent) error
}

func NewOrderHandler(db *sql.DB, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{DB: db, Log: log, Publish: queuepublisher.PublishOrderPlaced}
}

type orderLineReq struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"required,gt=0,lte=50"`
	Notes    string `json:"notes" validate:"max=200"`
}

type createOrderReq struct {
	TableID int64          `json:"table_id" validate:"required,gt=0"`
	Lines   []orderLineReq `json:"lines" validate:"required,min=1,dive"`
}

type setStatusReq struct {
	Status string `json:"status" validate:"required,oneof=PAID CANCELLED"`
}

// Create opens a check for a table. The order row, its lines and the total
// are written in one transaction; the order.placed event goes out after the
// commit, best effort.
func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sess := middleware.CurrentSession(c)
	userID := *sess.UserID

	lines := make([]repository.OrderLine, len(req.Lines))
	items := 0
	for i, l := range req.Lines {
		lines[i] = repository.OrderLine{ItemID: l.ItemID, Quantity: l.Quantity, Notes: l.Notes}
		items += l.Quantity
	}

	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		now := time.Now().UTC()
		orders := repository.NewOrderRepo(conn)
		id, total, err := orders.OpenOrder(ctx, req.TableID, userID, lines, now)
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "item unavailable"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order unavailable"})
		}

		if h.Publish != nil {
			ev := queue.OrderPlacedEvent{
				OrderID:    id,
				TableID:    req.TableID,
				UserID:     userID,
				ItemCount:  items,
				TotalCents: total,
				PlacedAt:   now.Format(time.RFC3339),
			}
			if err := h.Publish(c.Request().Context(), ev); err != nil {
				h.Log.Warn().Err(err).Int64("order_id", id).Msg("order.placed publish failed")
			}
		}
		return c.JSON(http.StatusCreated, echo.Map{"id": id, "total_cents": total})
	})
}

// ListOpen returns every open check with table and staff labels.
func (h *OrderHandler) ListOpen(c echo.Context) error {
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		open, err := repository.NewOrderRepo(conn).ListOpen(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "orders unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"orders": open})
	})
}

// SetStatus closes a check as PAID or CANCELLED. Closing a check that is
// not open conflicts.
func (h *OrderHandler) SetStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req setStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		err := repository.NewOrderRepo(conn).SetStatus(ctx, id, req.Status, time.Now().UTC())
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "order is not open"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "orders unavailable"})
		}
		return c.NoContent(http.StatusNoContent)
	})
}

type tablePart struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Seats int    `json:"seats"`
}

// Tables lists the dining tables for the floor plan.
func (h *OrderHandler) Tables(c echo.Context) error {
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		tables, err := repository.NewOrderRepo(conn).Tables(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tables unavailable"})
		}
		parts := make([]tablePart, 0, len(tables))
		for _, t := range tables {
			parts = append(parts, tablePart{ID: t.ID, Label: t.Label, Seats: t.Seats})
		}
		return c.JSON(http.StatusOK, echo.Map{"tables": parts})
	})
}
