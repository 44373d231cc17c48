package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ederavi/bistro-pos/internal/auth"
	"github.com/ederavi/bistro-pos/internal/auth/storefakes"
	"github.com/ederavi/bistro-pos/internal/model"
	"github.com/ederavi/bistro-pos/internal/session"
	"github.com/ederavi/bistro-pos/internal/utils"
)

const (
	testUsername = "cashier1"
	testEmail    = "cashier@example.com"
	testPassword = "correct-horse"
)

// testFixture wires the service to in-memory collaborators with a movable
// clock.
type testFixture struct {
	users    *storefakes.FakeUserStore
	sessions *session.Manager
	service  *auth.Service
	now      time.Time
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		users: storefakes.New(),
		now:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.sessions = session.NewManager(session.NewMemoryStore(), time.Hour, 5*time.Minute, session.WithClock(clock))
	f.service = auth.NewService(f.users, f.sessions, auth.Config{
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		RememberTTL:      30 * 24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		ResetSecret:      "reset-secret",
		ResetTTL:         30 * time.Minute,
	}, zerolog.Nop(), auth.WithClock(clock))

	hash, err := utils.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	f.users.AddUser(&model.User{
		ID:           1,
		Username:     testUsername,
		Email:        testEmail,
		PasswordHash: hash,
		DisplayName:  "Cashier One",
		IsActive:     true,
	}, []string{"cashier"}, []string{"orders.create", "orders.read"})
	return f
}

func (f *testFixture) login(t *testing.T, sess *session.Session, identifier, secret string, remember bool) auth.LoginResult {
	t.Helper()
	res, err := f.service.AttemptLogin(context.Background(), sess, identifier, secret, remember)
	require.NoError(t, err)
	return res
}

// Four wrong attempts leave the counter at 4 without locking; the fifth,
// correct, attempt succeeds, resets the counter and populates the session.
func TestLoginAfterFailuresResetsCounter(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.New()

	for i := 0; i < 4; i++ {
		res := f.login(t, sess, testUsername, "wrong", false)
		assert.False(t, res.OK)
		assert.Equal(t, auth.ReasonBadCredentials, res.Reason)
	}
	u, _ := f.users.FindByID(context.Background(), 1)
	assert.Equal(t, 4, u.FailedLogins)
	assert.Nil(t, u.LockedUntil, "four failures must not lock")

	oldID := sess.ID
	res := f.login(t, sess, testUsername, testPassword, false)
	require.True(t, res.OK)

	u, _ = f.users.FindByID(context.Background(), 1)
	assert.Zero(t, u.FailedLogins)
	assert.Nil(t, u.LockedUntil)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, f.now, *u.LastLoginAt)

	assert.NotEqual(t, oldID, sess.ID, "session id must rotate on login")
	assert.True(t, sess.HasRole("cashier"))
	assert.True(t, sess.Can("orders.create"))
}

func TestLoginByEmail(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, f.sessions.New(), testEmail, testPassword, false)
	assert.True(t, res.OK)
}

// The fifth failure engages the lockout; while it lasts even the correct
// secret is rejected, and after it elapses a correct attempt succeeds.
func TestLockoutStateMachine(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.New()

	for i := 0; i < 5; i++ {
		f.login(t, sess, testUsername, "wrong", false)
	}
	u, _ := f.users.FindByID(context.Background(), 1)
	require.NotNil(t, u.LockedUntil)
	assert.Equal(t, f.now.Add(15*time.Minute), *u.LockedUntil)

	res := f.login(t, sess, testUsername, testPassword, false)
	assert.False(t, res.OK)
	assert.Equal(t, auth.ReasonLockedOut, res.Reason, "correct secret must not bypass the lockout")

	f.now = f.now.Add(16 * time.Minute)
	res = f.login(t, sess, testUsername, testPassword, false)
	require.True(t, res.OK)
	u, _ = f.users.FindByID(context.Background(), 1)
	assert.Zero(t, u.FailedLogins)
	assert.Nil(t, u.LockedUntil)
}

// Unknown identifiers, deactivated and deleted accounts are
// indistinguishable from a wrong secret.
func TestRejectionsAreGeneric(t *testing.T) {
	f := newFixture(t)
	deleted := f.now.Add(-time.Hour)
	f.users.AddUser(&model.User{ID: 2, Username: "gone", PasswordHash: "x", IsActive: true, DeletedAt: &deleted}, nil, nil)
	f.users.AddUser(&model.User{ID: 3, Username: "parked", PasswordHash: "x", IsActive: false}, nil, nil)

	for _, identifier := range []string{"nobody", "gone", "parked"} {
		res := f.login(t, f.sessions.New(), identifier, testPassword, false)
		assert.False(t, res.OK)
		assert.Equal(t, auth.ReasonBadCredentials, res.Reason, "identifier %q", identifier)
	}
}

func TestRememberTokenRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.sessions.New()
	res := f.login(t, sess, testUsername, testPassword, true)
	require.True(t, res.OK)
	require.NotEmpty(t, res.RememberSecret)
	assert.Equal(t, 1, f.users.TokenCount(), "only the hash is persisted, as one row")

	// A fresh visitor presents the raw secret and gets the same login side
	// effects.
	fresh := f.sessions.New()
	res2, err := f.service.LoginWithRememberToken(ctx, fresh, res.RememberSecret)
	require.NoError(t, err)
	require.True(t, res2.OK)
	assert.True(t, fresh.Authenticated())
	assert.True(t, fresh.HasRole("cashier"))

	// Tokens are not rotated on use: the same secret still works.
	again := f.sessions.New()
	res3, err := f.service.LoginWithRememberToken(ctx, again, res.RememberSecret)
	require.NoError(t, err)
	assert.True(t, res3.OK)
}

func TestRememberTokenExpiry(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, f.sessions.New(), testUsername, testPassword, true)
	require.True(t, res.OK)

	f.now = f.now.Add(31 * 24 * time.Hour)
	out, err := f.service.LoginWithRememberToken(context.Background(), f.sessions.New(), res.RememberSecret)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, auth.ReasonBadCredentials, out.Reason)
}

// An aborted login must not leave an active token row behind; the token is
// only persisted once the login side effects are in.
func TestRememberTokenNotPersistedWhenLoginFails(t *testing.T) {
	f := newFixture(t)
	f.users.FailSaveSuccess = errors.New("store down")

	sess := f.sessions.New()
	_, err := f.service.AttemptLogin(context.Background(), sess, testUsername, testPassword, true)
	require.Error(t, err)
	assert.Zero(t, f.users.TokenCount())
	assert.False(t, sess.Authenticated())
}

// A token store fault degrades to a plain login: no secret, no row, but the
// session is authenticated.
func TestRememberTokenStoreFaultDegrades(t *testing.T) {
	f := newFixture(t)
	f.users.FailInsertToken = errors.New("store down")

	sess := f.sessions.New()
	res, err := f.service.AttemptLogin(context.Background(), sess, testUsername, testPassword, true)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.RememberSecret)
	assert.True(t, sess.Authenticated())
	assert.Zero(t, f.users.TokenCount())
}

func TestRememberTokenSkippedWhenAuthenticated(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.New()
	f.login(t, sess, testUsername, testPassword, false)

	out, err := f.service.LoginWithRememberToken(context.Background(), sess, "whatever")
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Zero(t, f.users.RememberLookups, "authenticated sessions must not hit the token store")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.sessions.New()
	res := f.login(t, sess, testUsername, testPassword, true)
	require.True(t, res.OK)
	loggedInID := sess.ID

	require.NoError(t, f.service.Logout(ctx, sess))
	assert.False(t, sess.Authenticated())
	assert.False(t, sess.HasRole("cashier"))
	assert.NotEqual(t, loggedInID, sess.ID, "session id must rotate on logout")
	assert.Zero(t, f.users.TokenCount(), "logout deletes the remember token row")

	// The deleted token no longer authenticates anyone.
	out, err := f.service.LoginWithRememberToken(ctx, f.sessions.New(), res.RememberSecret)
	require.NoError(t, err)
	assert.False(t, out.OK)
}

// Role and permission checks read the caches captured at login; grant
// changes only take effect on the next login. Expected staleness, not a bug.
func TestGrantsAreCachedUntilNextLogin(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.New()
	f.login(t, sess, testUsername, testPassword, false)
	require.True(t, sess.HasRole("cashier"))

	f.users.RolesByUser[1] = []string{"manager"}
	f.users.PermsByUser[1] = []string{"reports.read"}

	assert.True(t, f.service.HasRole(sess, "cashier"), "stale cache still answers")
	assert.False(t, f.service.HasRole(sess, "manager"))
	assert.False(t, f.service.Can(sess, "reports.read"))

	f.login(t, sess, testUsername, testPassword, false)
	assert.True(t, f.service.HasRole(sess, "manager"))
	assert.True(t, f.service.Can(sess, "reports.read"))
}

func TestPermissionsDeduplicated(t *testing.T) {
	f := newFixture(t)
	f.users.PermsByUser[1] = []string{"orders.create", "orders.create", "menu.read", "orders.create"}

	sess := f.sessions.New()
	f.login(t, sess, testUsername, testPassword, false)
	assert.Equal(t, []string{"orders.create", "menu.read"}, sess.Permissions)
}

func TestRequireHelpers(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.New()

	assert.ErrorIs(t, f.service.RequireAuth(sess), auth.ErrUnauthenticated)
	assert.ErrorIs(t, f.service.RequireRole(sess, "cashier"), auth.ErrUnauthenticated)

	f.login(t, sess, testUsername, testPassword, false)
	assert.NoError(t, f.service.RequireAuth(sess))
	assert.NoError(t, f.service.RequireRole(sess, "cashier"))
	assert.NoError(t, f.service.RequirePermission(sess, "orders.create"))
	assert.ErrorIs(t, f.service.RequireRole(sess, "manager"), auth.ErrForbidden)
	assert.ErrorIs(t, f.service.RequirePermission(sess, "orders.void"), auth.ErrForbidden)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.service.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	// Unknown identifiers produce no token and no error.
	none, err := f.service.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, f.service.ResetPassword(ctx, tok, "new-secret"))
	res := f.login(t, f.sessions.New(), testUsername, "new-secret", false)
	assert.True(t, res.OK)

	assert.Error(t, f.service.ResetPassword(ctx, "garbage-token", "x"))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.sessions.New()
	f.login(t, sess, testUsername, testPassword, false)

	assert.ErrorIs(t, f.service.ChangePassword(ctx, sess, "wrong-current", "next"), auth.ErrUnauthenticated)
	require.NoError(t, f.service.ChangePassword(ctx, sess, testPassword, "brand-new"))

	res := f.login(t, f.sessions.New(), testUsername, "brand-new", false)
	assert.True(t, res.OK)
}
