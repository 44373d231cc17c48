// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPlacedEvent is published when a new guest check is opened. It carries
// enough for downstream consumers (kitchen display, analytics) to act
// without querying the primary database.
type OrderPlacedEvent struct {
	OrderID    int64  `json:"order_id"`
	TableID    int64  `json:"table_id"`
	UserID     int64  `json:"user_id"`
	ItemCount  int    `json:"item_count"`
	TotalCents int64  `json:"total_cents"`
	PlacedAt   string `json:"placed_at"`
}
