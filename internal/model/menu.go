package model

import "time"

// MenuCategory groups menu items for display (e.g. Starters, Mains).
//
// Fields:
//  ID       – primary key identifier.
//  Name     – category name shown on the menu.
//  Position – sort position within the menu.
type MenuCategory struct {
	ID       int64  // menu_categories.id
	Name     string // menu_categories.name
	Position int    // menu_categories.position
}

// MenuItem is one orderable dish or drink. Prices are stored in cents to
// avoid floating point money arithmetic.
//
// Fields:
//  ID          – primary key identifier.
//  CategoryID  – owning category.
//  Name        – item name shown on the menu and receipts.
//  Description – free-text description.
//  PriceCents  – unit price in cents.
//  IsAvailable – whether the item can currently be ordered.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type MenuItem struct {
	ID          int64     // menu_items.id
	CategoryID  int64     // menu_items.category_id
	Name        string    // menu_items.name
	Description string    // menu_items.description
	PriceCents  int64     // menu_items.price_cents
	IsAvailable bool      // menu_items.is_available
	CreatedAt   time.Time // menu_items.created_at
	UpdatedAt   time.Time // menu_items.updated_at
}
