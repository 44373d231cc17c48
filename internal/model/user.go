package model

import "time"

// User represents a staff account as stored in the `users` table. Each
// field corresponds to a column. The json tags are omitted because these
// structs are used internally by the repository layer; handlers define
// separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique short login name (e.g. "cashier1").
//  Email        – unique email address; login accepts either identifier.
//  PasswordHash – bcrypt hashed password.
//  DisplayName  – name shown on receipts and in the admin UI.
//  IsActive     – whether the account may log in.
//  DeletedAt    – soft-delete marker (null while the account exists).
//  FailedLogins – consecutive failed login attempts since the last success.
//  LockedUntil  – end of the current lockout window (null when not locked).
//  LastLoginAt  – timestamp of the most recent successful login.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           int64      // users.id
	Username     string     // users.username
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	DisplayName  string     // users.display_name
	IsActive     bool       // users.is_active
	DeletedAt    *time.Time // users.deleted_at (nullable)
	FailedLogins int        // users.failed_logins
	LockedUntil  *time.Time // users.locked_until (nullable)
	LastLoginAt  *time.Time // users.last_login_at (nullable)
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}

// Locked reports whether the account is inside a lockout window at the
// given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// RememberToken models an entry in the `remember_tokens` table. Each token
// belongs to a user; the plain secret is never stored, only its SHA-256
// hash. A user may hold several tokens at once (one per device).
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the raw secret.
//  ExpiresAt – expiration timestamp of the token.
//  CreatedAt – timestamp of creation.
type RememberToken struct {
	ID        int64     // remember_tokens.id
	UserID    int64     // remember_tokens.user_id
	TokenHash string    // remember_tokens.token_hash
	ExpiresAt time.Time // remember_tokens.expires_at
	CreatedAt time.Time // remember_tokens.created_at
}
