package auth

import (
	"context"
	"time"

	"github.com/ederavi/bistro-pos/internal/model"
)

// UserStore is the persistence the identity service needs. The SQL
// implementation lives in internal/repository, built on the query builder;
// tests substitute an in-memory fake.
type UserStore interface {
	// FindByIdentifier looks a user up by username or email. Returns
	// (nil, nil) when no row matches; activity and deletion checks are the
	// service's job so every miss looks the same to the caller.
	FindByIdentifier(ctx context.Context, identifier string) (*model.User, error)

	// FindByID fetches one user by primary key. (nil, nil) on miss.
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// SaveLoginFailure persists the failed-attempt counter and, when the
	// threshold was reached, the lockout deadline.
	SaveLoginFailure(ctx context.Context, userID int64, failed int, lockedUntil *time.Time) error

	// SaveLoginSuccess resets the failure counter, clears any lockout and
	// stamps the login time, in one statement.
	SaveLoginSuccess(ctx context.Context, userID int64, at time.Time) error

	// Roles returns the names of the user's roles.
	Roles(ctx context.Context, userID int64) ([]string, error)

	// Permissions returns the deduplicated permission names granted through
	// all of the user's roles.
	Permissions(ctx context.Context, userID int64) ([]string, error)

	InsertRememberToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error

	// FindUserByRememberToken resolves a token hash to its active,
	// non-deleted owner, honoring the token's expiry. (nil, nil) on miss.
	FindUserByRememberToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)

	DeleteRememberToken(ctx context.Context, tokenHash string) error

	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}
