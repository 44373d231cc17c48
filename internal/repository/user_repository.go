package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/model"
)

// UserRepo is the SQL implementation of the identity service's user store.
// All statements go through the query builder on the request's connection.
type UserRepo struct{ conn *database.Conn }

func NewUserRepo(conn *database.Conn) *UserRepo { return &UserRepo{conn: conn} }

// FindByIdentifier fetches a user by normalized username or email. Active
// and deleted flags are returned as-is; the identity service decides what a
// miss looks like, so repository callers can't tell absent from disabled.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	ident := strings.ToLower(strings.TrimSpace(identifier))
	row, ok, err := r.conn.Table("users").
		Where("username", "=", ident).
		OrWhere("email", "=", ident).
		First(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return scanUser(row), nil
}

// FindByID fetches a user by primary key.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	row, ok, err := r.conn.Table("users").Where("id", "=", id).First(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return scanUser(row), nil
}

// SaveLoginFailure stores the bumped failure counter and, when the attempt
// engaged the lockout, its deadline.
func (r *UserRepo) SaveLoginFailure(ctx context.Context, userID int64, failed int, lockedUntil *time.Time) error {
	data := map[string]any{"failed_logins": failed}
	if lockedUntil != nil {
		data["locked_until"] = *lockedUntil
	}
	_, err := r.conn.Table("users").Where("id", "=", userID).Update(ctx, data)
	return err
}

// SaveLoginSuccess resets the counters and stamps the login in one UPDATE,
// so the row is never seen half-reset.
func (r *UserRepo) SaveLoginSuccess(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.conn.Table("users").Where("id", "=", userID).Update(ctx, map[string]any{
		"failed_logins": 0,
		"locked_until":  nil,
		"last_login_at": at,
	})
	return err
}

// Roles resolves the user's role names through the user_roles join table.
func (r *UserRepo) Roles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.conn.Table("roles").
		Select("roles.name").
		Join("user_roles", "user_roles.role_id", "=", "roles.id").
		Where("user_roles.user_id", "=", userID).
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return nameColumn(rows), nil
}

// Permissions resolves the distinct permission set granted through all of
// the user's roles. Two roles granting the same permission yield one entry.
func (r *UserRepo) Permissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.conn.Table("permissions").
		Distinct().
		Select("permissions.name").
		Join("role_permissions", "role_permissions.permission_id", "=", "permissions.id").
		Join("user_roles", "user_roles.role_id", "=", "role_permissions.role_id").
		Where("user_roles.user_id", "=", userID).
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return nameColumn(rows), nil
}

// InsertRememberToken stores a remember token hash row.
func (r *UserRepo) InsertRememberToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.conn.Table("remember_tokens").Insert(ctx, map[string]any{
		"user_id":    userID,
		"token_hash": tokenHash,
		"expires_at": expiresAt,
	})
	return err
}

// FindUserByRememberToken resolves a token hash to its owner, provided the
// token has not expired and the owner is still active and not deleted.
func (r *UserRepo) FindUserByRememberToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	row, ok, err := r.conn.Table("users").
		Select("users.*").
		Join("remember_tokens", "remember_tokens.user_id", "=", "users.id").
		Where("remember_tokens.token_hash", "=", tokenHash).
		Where("remember_tokens.expires_at", ">", now).
		Where("users.is_active", "=", 1).
		WhereNull("users.deleted_at").
		First(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return scanUser(row), nil
}

// DeleteRememberToken removes one token row by hash.
func (r *UserRepo) DeleteRememberToken(ctx context.Context, tokenHash string) error {
	_, err := r.conn.Table("remember_tokens").Where("token_hash", "=", tokenHash).Delete(ctx)
	return err
}

// DeleteExpiredRememberTokens prunes tokens past their expiry.
func (r *UserRepo) DeleteExpiredRememberTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.conn.Table("remember_tokens").Where("expires_at", "<", now).Delete(ctx)
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := r.conn.Table("users").Where("id", "=", userID).Update(ctx, map[string]any{
		"password_hash": passwordHash,
	})
	return err
}

func scanUser(row database.Row) *model.User {
	u := &model.User{
		ID:           rowInt64(row, "id"),
		Username:     rowString(row, "username"),
		Email:        rowString(row, "email"),
		PasswordHash: rowString(row, "password_hash"),
		DisplayName:  rowString(row, "display_name"),
		IsActive:     rowBool(row, "is_active"),
		DeletedAt:    rowTime(row, "deleted_at"),
		FailedLogins: int(rowInt64(row, "failed_logins")),
		LockedUntil:  rowTime(row, "locked_until"),
		LastLoginAt:  rowTime(row, "last_login_at"),
	}
	if t := rowTime(row, "created_at"); t != nil {
		u.CreatedAt = *t
	}
	if t := rowTime(row, "updated_at"); t != nil {
		u.UpdatedAt = *t
	}
	return u
}

func nameColumn(rows []database.Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowString(row, "name"))
	}
	return out
}
