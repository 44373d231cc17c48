package repository

import (
	"context"
	"time"

	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/model"
)

// OrderRepo provides operations on guest checks and their line items.
// Multi-statement writes run inside the connection's logical transaction;
// a failure rolls the whole check back.
type OrderRepo struct{ conn *database.Conn }

func NewOrderRepo(conn *database.Conn) *OrderRepo { return &OrderRepo{conn: conn} }

// OrderLine is one requested line when opening or extending an order.
type OrderLine struct {
	ItemID   int64
	Quantity int
	Notes    string
}

// OpenOrder creates an order with its line items atomically. Unit prices
// are copied from the menu at order time and the denormalized total is
// computed from them. Returns the new order id and its total.
func (r *OrderRepo) OpenOrder(ctx context.Context, tableID, userID int64, lines []OrderLine, now time.Time) (int64, int64, error) {
	if err := r.conn.Begin(ctx); err != nil {
		return 0, 0, err
	}
	orderID, total, err := r.openOrderTx(ctx, tableID, userID, lines, now)
	if err != nil {
		_ = r.conn.Rollback()
		return 0, 0, err
	}
	if err := r.conn.Commit(); err != nil {
		return 0, 0, err
	}
	return orderID, total, nil
}

func (r *OrderRepo) openOrderTx(ctx context.Context, tableID, userID int64, lines []OrderLine, now time.Time) (int64, int64, error) {
	orderID, err := r.conn.Table("orders").Insert(ctx, map[string]any{
		"table_id":    tableID,
		"user_id":     userID,
		"status":      model.OrderOpen,
		"total_cents": 0,
		"opened_at":   now,
	})
	if err != nil {
		return 0, 0, err
	}

	var total int64
	itemRows := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		item, err := r.menuItemForOrder(ctx, line.ItemID)
		if err != nil {
			return 0, 0, err
		}
		total += item.PriceCents * int64(line.Quantity)
		itemRows = append(itemRows, map[string]any{
			"order_id":    orderID,
			"item_id":     line.ItemID,
			"quantity":    line.Quantity,
			"price_cents": item.PriceCents,
			"notes":       line.Notes,
		})
	}
	if len(itemRows) > 0 {
		if _, err := r.conn.Table("order_items").Insert(ctx, itemRows...); err != nil {
			return 0, 0, err
		}
	}
	if _, err := r.conn.Table("orders").Where("id", "=", orderID).Update(ctx, map[string]any{
		"total_cents": total,
	}); err != nil {
		return 0, 0, err
	}
	return orderID, total, nil
}

// menuItemForOrder fetches one orderable item, locking the row so the price
// can't shift under the open transaction.
func (r *OrderRepo) menuItemForOrder(ctx context.Context, itemID int64) (*model.MenuItem, error) {
	row, ok, err := r.conn.Table("menu_items").
		Where("id", "=", itemID).
		Where("is_available", "=", 1).
		Lock(true).
		First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	item := scanMenuItem(row)
	return &item, nil
}

// SetStatus transitions an order out of OPEN. Non-open orders conflict;
// PAID and CANCELLED stamp the closing time.
func (r *OrderRepo) SetStatus(ctx context.Context, orderID int64, status string, now time.Time) error {
	data := map[string]any{"status": status}
	if status == model.OrderPaid || status == model.OrderCancelled {
		data["closed_at"] = now
	}
	n, err := r.conn.Table("orders").
		Where("id", "=", orderID).
		Where("status", "=", model.OrderOpen).
		Update(ctx, data)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// OpenOrderSummary is one open check with its table and staff labels.
type OpenOrderSummary struct {
	ID         int64  `json:"id"`
	TableLabel string `json:"table"`
	Staff      string `json:"staff"`
	TotalCents int64  `json:"total_cents"`
	OpenedAt   string `json:"opened_at"`
}

// ListOpen returns every open check, newest first.
func (r *OrderRepo) ListOpen(ctx context.Context) ([]OpenOrderSummary, error) {
	rows, err := r.conn.Table("orders").
		Select("orders.id", "dining_tables.label", "users.display_name", "orders.total_cents", "orders.opened_at").
		Join("dining_tables", "dining_tables.id", "=", "orders.table_id").
		LeftJoin("users", "users.id", "=", "orders.user_id").
		Where("orders.status", "=", model.OrderOpen).
		OrderBy("orders.opened_at", "desc").
		Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OpenOrderSummary, 0, len(rows))
	for _, row := range rows {
		s := OpenOrderSummary{
			ID:         rowInt64(row, "id"),
			TableLabel: rowString(row, "label"),
			Staff:      rowString(row, "display_name"),
			TotalCents: rowInt64(row, "total_cents"),
		}
		if t := rowTime(row, "opened_at"); t != nil {
			s.OpenedAt = t.UTC().Format(time.RFC3339)
		}
		out = append(out, s)
	}
	return out, nil
}

// CategorySales is one row of the sales report.
type CategorySales struct {
	Category   string `json:"category"`
	Items      int64  `json:"items_sold"`
	TotalCents int64  `json:"total_cents"`
}

// SalesByCategory aggregates paid order lines per menu category inside a
// closing-time window, skipping categories that sold nothing.
func (r *OrderRepo) SalesByCategory(ctx context.Context, from, to time.Time) ([]CategorySales, error) {
	rows, err := r.conn.Table("order_items").
		Select("menu_categories.name", "SUM(order_items.quantity) AS items_sold", "SUM(order_items.quantity * order_items.price_cents) AS total_cents").
		Join("orders", "orders.id", "=", "order_items.order_id").
		Join("menu_items", "menu_items.id", "=", "order_items.item_id").
		Join("menu_categories", "menu_categories.id", "=", "menu_items.category_id").
		Where("orders.status", "=", model.OrderPaid).
		WhereBetween("orders.closed_at", from, to).
		GroupBy("menu_categories.name").
		Having("SUM(order_items.quantity)", ">", 0).
		OrderBy("total_cents", "desc").
		Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategorySales, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategorySales{
			Category:   rowString(row, "name"),
			Items:      rowInt64(row, "items_sold"),
			TotalCents: rowInt64(row, "total_cents"),
		})
	}
	return out, nil
}

// Tables lists the dining tables.
func (r *OrderRepo) Tables(ctx context.Context) ([]model.DiningTable, error) {
	rows, err := r.conn.Table("dining_tables").OrderBy("label", "asc").Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.DiningTable, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.DiningTable{
			ID:    rowInt64(row, "id"),
			Label: rowString(row, "label"),
			Seats: int(rowInt64(row, "seats")),
		})
	}
	return out, nil
}
