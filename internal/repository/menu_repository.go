package repository

import (
	"context"

	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/model"
)

// MenuRepo provides CRUD operations for menu categories and items.
type MenuRepo struct{ conn *database.Conn }

func NewMenuRepo(conn *database.Conn) *MenuRepo { return &MenuRepo{conn: conn} }

// ItemFilter narrows Items listings. Zero values mean "no constraint".
type ItemFilter struct {
	CategoryID    int64
	Search        string
	OnlyAvailable bool
	MinPriceCents int64
	MaxPriceCents int64
	Limit         int
	Offset        int
}

// Categories lists all categories in display order.
func (r *MenuRepo) Categories(ctx context.Context) ([]model.MenuCategory, error) {
	rows, err := r.conn.Table("menu_categories").
		OrderBy("position", "asc").
		OrderBy("name", "asc").
		Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.MenuCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.MenuCategory{
			ID:       rowInt64(row, "id"),
			Name:     rowString(row, "name"),
			Position: int(rowInt64(row, "position")),
		})
	}
	return out, nil
}

// CreateCategory inserts a category and returns its id.
func (r *MenuRepo) CreateCategory(ctx context.Context, name string, position int) (int64, error) {
	return r.conn.Table("menu_categories").Insert(ctx, map[string]any{
		"name":     name,
		"position": position,
	})
}

// DeleteCategory removes an empty category. Deleting a category that still
// has items reports ErrConflict.
func (r *MenuRepo) DeleteCategory(ctx context.Context, id int64) error {
	used, err := r.conn.Table("menu_items").Where("category_id", "=", id).Exists(ctx)
	if err != nil {
		return err
	}
	if used {
		return ErrConflict
	}
	n, err := r.conn.Table("menu_categories").Where("id", "=", id).Delete(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Items lists menu items matching the filter.
func (r *MenuRepo) Items(ctx context.Context, f ItemFilter) ([]model.MenuItem, error) {
	b := r.conn.Table("menu_items")
	if f.CategoryID > 0 {
		b.Where("category_id", "=", f.CategoryID)
	}
	if f.Search != "" {
		b.Where("name", "LIKE", "%"+f.Search+"%")
	}
	if f.OnlyAvailable {
		b.Where("is_available", "=", 1)
	}
	switch {
	case f.MinPriceCents > 0 && f.MaxPriceCents > 0:
		b.WhereBetween("price_cents", f.MinPriceCents, f.MaxPriceCents)
	case f.MinPriceCents > 0:
		b.Where("price_cents", ">=", f.MinPriceCents)
	case f.MaxPriceCents > 0:
		b.Where("price_cents", "<=", f.MaxPriceCents)
	}
	b.OrderBy("category_id", "asc").OrderBy("name", "asc")
	if f.Limit > 0 {
		b.Limit(f.Limit).Offset(f.Offset)
	}
	rows, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.MenuItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanMenuItem(row))
	}
	return out, nil
}

// ItemByID fetches one item.
func (r *MenuRepo) ItemByID(ctx context.Context, id int64) (*model.MenuItem, error) {
	row, ok, err := r.conn.Table("menu_items").Where("id", "=", id).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	item := scanMenuItem(row)
	return &item, nil
}

// CreateItem inserts a menu item and returns its id.
func (r *MenuRepo) CreateItem(ctx context.Context, item model.MenuItem) (int64, error) {
	available := 0
	if item.IsAvailable {
		available = 1
	}
	return r.conn.Table("menu_items").Insert(ctx, map[string]any{
		"category_id":  item.CategoryID,
		"name":         item.Name,
		"description":  item.Description,
		"price_cents":  item.PriceCents,
		"is_available": available,
	})
}

// UpdateItem applies the given column changes to one item. Existence is
// checked up front: MySQL reports zero affected rows when an update changes
// nothing, so the row count cannot distinguish a missing item from a
// no-op resubmission.
func (r *MenuRepo) UpdateItem(ctx context.Context, id int64, fields map[string]any) error {
	found, err := r.conn.Table("menu_items").Where("id", "=", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	_, err = r.conn.Table("menu_items").Where("id", "=", id).Update(ctx, fields)
	return err
}

// DeleteItem removes one item.
func (r *MenuRepo) DeleteItem(ctx context.Context, id int64) error {
	n, err := r.conn.Table("menu_items").Where("id", "=", id).Delete(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DailySpecial picks one random available item for the chalkboard.
func (r *MenuRepo) DailySpecial(ctx context.Context) (*model.MenuItem, error) {
	row, ok, err := r.conn.Table("menu_items").
		Where("is_available", "=", 1).
		InRandomOrder().
		First(ctx)
	if err != nil || !ok {
		return nil, err
	}
	item := scanMenuItem(row)
	return &item, nil
}

func scanMenuItem(row database.Row) model.MenuItem {
	item := model.MenuItem{
		ID:          rowInt64(row, "id"),
		CategoryID:  rowInt64(row, "category_id"),
		Name:        rowString(row, "name"),
		Description: rowString(row, "description"),
		PriceCents:  rowInt64(row, "price_cents"),
		IsAvailable: rowBool(row, "is_available"),
	}
	if t := rowTime(row, "created_at"); t != nil {
		item.CreatedAt = *t
	}
	if t := rowTime(row, "updated_at"); t != nil {
		item.UpdatedAt = *t
	}
	return item
}
