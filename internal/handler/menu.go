package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/model"
	"github.com/ederavi/bistro-pos/internal/repository"
)

// MenuHandler serves the public menu and its administration endpoints.
type MenuHandler struct {
	DB *sql.DB
}

func NewMenuHandler(db *sql.DB) *MenuHandler { return &MenuHandler{DB: db} }

type createCategoryReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Position int    `json:"position" validate:"gte=0"`
}

type createItemReq struct {
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=1000"`
	PriceCents  int64  `json:"price_cents" validate:"required,gt=0"`
	IsAvailable bool   `json:"is_available"`
}

type updateItemReq struct {
	Name        *string `json:"name" validate:"omitempty,max=150"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gt=0"`
	IsAvailable *bool   `json:"is_available"`
}

// ----- response parts -----

type categoryPart struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type itemPart struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	IsAvailable bool   `json:"is_available"`
}

type menuSection struct {
	Category categoryPart `json:"category"`
	Items    []itemPart   `json:"items"`
}

func toItemPart(it model.MenuItem) itemPart {
	return itemPart{
		ID:          it.ID,
		CategoryID:  it.CategoryID,
		Name:        it.Name,
		Description: it.Description,
		PriceCents:  it.PriceCents,
		IsAvailable: it.IsAvailable,
	}
}

func toItemParts(items []model.MenuItem) []itemPart {
	out := make([]itemPart, 0, len(items))
	for _, it := range items {
		out = append(out, toItemPart(it))
	}
	return out
}

// PublicMenu returns the available items grouped by category in display
// order. This endpoint sits behind the Redis response cache.
func (h *MenuHandler) PublicMenu(c echo.Context) error {
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		menu := repository.NewMenuRepo(conn)
		cats, err := menu.Categories(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		items, err := menu.Items(ctx, repository.ItemFilter{OnlyAvailable: true})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		byCategory := make(map[int64][]itemPart, len(cats))
		for _, it := range items {
			byCategory[it.CategoryID] = append(byCategory[it.CategoryID], toItemPart(it))
		}
		sections := make([]menuSection, 0, len(cats))
		for _, cat := range cats {
			sections = append(sections, menuSection{
				Category: categoryPart{ID: cat.ID, Name: cat.Name, Position: cat.Position},
				Items:    byCategory[cat.ID],
			})
		}
		return c.JSON(http.StatusOK, echo.Map{"menu": sections})
	})
}

// DailySpecial serves one random available item for the chalkboard display.
func (h *MenuHandler) DailySpecial(c echo.Context) error {
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		item, err := repository.NewMenuRepo(conn).DailySpecial(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		if item == nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no available items"})
		}
		return c.JSON(http.StatusOK, toItemPart(*item))
	})
}

// ListItems is the admin listing with filters passed as query parameters.
func (h *MenuHandler) ListItems(c echo.Context) error {
	f := repository.ItemFilter{
		CategoryID:    queryInt64(c, "category_id"),
		Search:        c.QueryParam("q"),
		OnlyAvailable: c.QueryParam("available") == "1",
		MinPriceCents: queryInt64(c, "min_price_cents"),
		MaxPriceCents: queryInt64(c, "max_price_cents"),
		Limit:         int(queryInt64(c, "limit")),
		Offset:        int(queryInt64(c, "offset")),
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		items, err := repository.NewMenuRepo(conn).Items(ctx, f)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"items": toItemParts(items)})
	})
}

func (h *MenuHandler) CreateCategory(c echo.Context) error {
	var req createCategoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		id, err := repository.NewMenuRepo(conn).CreateCategory(ctx, req.Name, req.Position)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		return c.JSON(http.StatusCreated, echo.Map{"id": id})
	})
}

// DeleteCategory refuses to remove a category that still has items.
func (h *MenuHandler) DeleteCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		switch err := repository.NewMenuRepo(conn).DeleteCategory(ctx, id); {
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "category has items"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		case err != nil:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func (h *MenuHandler) CreateItem(c echo.Context) error {
	var req createItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		id, err := repository.NewMenuRepo(conn).CreateItem(ctx, model.MenuItem{
			CategoryID:  req.CategoryID,
			Name:        req.Name,
			Description: req.Description,
			PriceCents:  req.PriceCents,
			IsAvailable: req.IsAvailable,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		return c.JSON(http.StatusCreated, echo.Map{"id": id})
	})
}

func (h *MenuHandler) UpdateItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.PriceCents != nil {
		fields["price_cents"] = *req.PriceCents
	}
	if req.IsAvailable != nil {
		v := 0
		if *req.IsAvailable {
			v = 1
		}
		fields["is_available"] = v
	}
	if len(fields) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		switch err := repository.NewMenuRepo(conn).UpdateItem(ctx, id, fields); {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		case err != nil:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func (h *MenuHandler) DeleteItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	return withConn(c, h.DB, func(ctx context.Context, conn *database.Conn) error {
		switch err := repository.NewMenuRepo(conn).DeleteItem(ctx, id); {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		case err != nil:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu unavailable"})
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func queryInt64(c echo.Context, name string) int64 {
	n, _ := strconv.ParseInt(c.QueryParam(name), 10, 64)
	return n
}
