// Package storefakes provides an in-memory auth.UserStore for tests.
package storefakes

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ederavi/bistro-pos/internal/model"
)

type rememberRow struct {
	UserID    int64
	ExpiresAt time.Time
}

// FakeUserStore keeps users, grants and remember tokens in maps and mutates
// them the way the SQL store would.
type FakeUserStore struct {
	mu          sync.Mutex
	Users       map[int64]*model.User
	RolesByUser map[int64][]string
	PermsByUser map[int64][]string
	Tokens      map[string]rememberRow

	// RememberLookups counts FindUserByRememberToken calls, so tests can
	// assert the token path was (or was not) consulted.
	RememberLookups int

	// FailSaveSuccess and FailInsertToken make the matching store call
	// return the given error, simulating a store fault.
	FailSaveSuccess error
	FailInsertToken error
}

func New() *FakeUserStore {
	return &FakeUserStore{
		Users:       map[int64]*model.User{},
		RolesByUser: map[int64][]string{},
		PermsByUser: map[int64][]string{},
		Tokens:      map[string]rememberRow{},
	}
}

// AddUser registers a user with its grants.
func (f *FakeUserStore) AddUser(u *model.User, roles, perms []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[u.ID] = u
	f.RolesByUser[u.ID] = roles
	f.PermsByUser[u.ID] = perms
}

// TokenCount reports how many remember tokens are stored.
func (f *FakeUserStore) TokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Tokens)
}

func (f *FakeUserStore) FindByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(identifier)
	for _, u := range f.Users {
		if strings.ToLower(u.Username) == needle || strings.ToLower(u.Email) == needle {
			return u, nil
		}
	}
	return nil, nil
}

func (f *FakeUserStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Users[id], nil
}

func (f *FakeUserStore) SaveLoginFailure(_ context.Context, userID int64, failed int, lockedUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[userID]; ok {
		u.FailedLogins = failed
		if lockedUntil != nil {
			u.LockedUntil = lockedUntil
		}
	}
	return nil
}

func (f *FakeUserStore) SaveLoginSuccess(_ context.Context, userID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSaveSuccess != nil {
		return f.FailSaveSuccess
	}
	if u, ok := f.Users[userID]; ok {
		u.FailedLogins = 0
		u.LockedUntil = nil
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

func (f *FakeUserStore) Roles(_ context.Context, userID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RolesByUser[userID], nil
}

func (f *FakeUserStore) Permissions(_ context.Context, userID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PermsByUser[userID], nil
}

func (f *FakeUserStore) InsertRememberToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailInsertToken != nil {
		return f.FailInsertToken
	}
	f.Tokens[tokenHash] = rememberRow{UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (f *FakeUserStore) FindUserByRememberToken(_ context.Context, tokenHash string, now time.Time) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RememberLookups++
	row, ok := f.Tokens[tokenHash]
	if !ok || now.After(row.ExpiresAt) {
		return nil, nil
	}
	u := f.Users[row.UserID]
	if u == nil || !u.IsActive || u.DeletedAt != nil {
		return nil, nil
	}
	return u, nil
}

func (f *FakeUserStore) DeleteRememberToken(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Tokens, tokenHash)
	return nil
}

func (f *FakeUserStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[userID]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}
