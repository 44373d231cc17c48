package model

import "time"

// Order statuses.
const (
	OrderOpen      = "OPEN"
	OrderPaid      = "PAID"
	OrderCancelled = "CANCELLED"
)

// DiningTable is a physical table in the restaurant.
type DiningTable struct {
	ID    int64  // dining_tables.id
	Label string // dining_tables.label (e.g. "T4", "Bar 2")
	Seats int    // dining_tables.seats
}

// Order represents one guest check opened at a table by a staff member.
// Line items live in `order_items`; TotalCents is the denormalized sum kept
// in step with the items inside the same transaction.
//
// Fields:
//  ID         – primary key identifier.
//  TableID    – table the order belongs to.
//  UserID     – staff member who opened the order.
//  Status     – OPEN, PAID or CANCELLED.
//  TotalCents – current total of all line items in cents.
//  OpenedAt   – when the order was opened.
//  ClosedAt   – when the order was paid or cancelled (null while open).
type Order struct {
	ID         int64      // orders.id
	TableID    int64      // orders.table_id
	UserID     int64      // orders.user_id
	Status     string     // orders.status
	TotalCents int64      // orders.total_cents
	OpenedAt   time.Time  // orders.opened_at
	ClosedAt   *time.Time // orders.closed_at (nullable)
}

// OrderItem is one line on an order. The unit price is copied from the menu
// item at ordering time so later menu edits don't rewrite old checks.
type OrderItem struct {
	ID         int64  // order_items.id
	OrderID    int64  // order_items.order_id
	ItemID     int64  // order_items.item_id
	Quantity   int    // order_items.quantity
	PriceCents int64  // order_items.price_cents (unit price at order time)
	Notes      string // order_items.notes
}
