package model

// Role represents a row in the `roles` table. Users are linked to roles
// through the `user_roles` join table; a user's effective roles are cached
// on the session at login.
//
// Fields:
//  ID   – numeric identifier of the role.
//  Name – unique role name (e.g. cashier, waiter, manager).
type Role struct {
	ID   int64  // roles.id
	Name string // roles.name
}

// Permission represents a row in the `permissions` table. Permissions are
// granted to roles through `role_permissions`; the set a user ends up with
// is the deduplicated union across all of their roles.
//
// Fields:
//  ID   – numeric identifier of the permission.
//  Name – unique permission name (e.g. orders.void, menu.edit).
type Permission struct {
	ID   int64  // permissions.id
	Name string // permissions.name
}
