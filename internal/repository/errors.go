// Package repository provides data access over the query builder. This file
// defines error values reused across repositories, so handlers can map
// failure scenarios to responses without inspecting SQL diagnostics.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Handlers should
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a menu category that still
// has items, or paying an order that is not open. Handlers should translate
// this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
