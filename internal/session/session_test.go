package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ederavi/bistro-pos/internal/session"
)

func TestCSRFTokenIsLazyAndStable(t *testing.T) {
	s := &session.Session{ID: "a"}

	tok := s.CSRF()
	require.NotEmpty(t, tok)
	assert.Len(t, tok, 64) // 32 random bytes, hex encoded
	assert.Equal(t, tok, s.CSRF(), "token must stay stable across reads")
}

func TestVerifyCSRF(t *testing.T) {
	s := &session.Session{ID: "a"}
	tok := s.CSRF()

	assert.NoError(t, s.VerifyCSRF(tok))
	assert.ErrorIs(t, s.VerifyCSRF(""), session.ErrCSRFMissing)
	assert.ErrorIs(t, s.VerifyCSRF("not-the-token"), session.ErrCSRFMismatch)
}

func TestVerifyCSRFBeforeMintRejects(t *testing.T) {
	s := &session.Session{ID: "a"}
	assert.ErrorIs(t, s.VerifyCSRF("anything"), session.ErrCSRFMismatch)
}

func TestResetCSRFInvalidatesPriorToken(t *testing.T) {
	s := &session.Session{ID: "a"}
	old := s.CSRF()

	s.ResetCSRF()
	fresh := s.CSRF()
	assert.NotEqual(t, old, fresh)
	assert.ErrorIs(t, s.VerifyCSRF(old), session.ErrCSRFMismatch)
	assert.NoError(t, s.VerifyCSRF(fresh))
}

func TestFlashConsumeOnce(t *testing.T) {
	s := &session.Session{ID: "a"}
	s.AddFlash(session.FlashSuccess, "order placed")
	s.AddFlash(session.FlashSuccess, "table closed")
	s.AddFlash(session.FlashError, "kitchen offline")

	assert.Equal(t, []string{"order placed", "table closed"}, s.ConsumeFlash(session.FlashSuccess))
	assert.Empty(t, s.ConsumeFlash(session.FlashSuccess), "second read observes an empty queue")
	assert.Equal(t, []string{"kitchen offline"}, s.ConsumeFlash(session.FlashError))
	assert.Empty(t, s.ConsumeFlash(session.FlashWarning))
}

func TestAuthenticateAndClearAreAtomic(t *testing.T) {
	s := &session.Session{ID: "a"}
	s.Authenticate(7, []string{"cashier"}, []string{"orders.create"})

	require.True(t, s.Authenticated())
	assert.True(t, s.HasRole("cashier"))
	assert.True(t, s.Can("orders.create"))
	assert.False(t, s.HasRole("manager"))

	s.ClearAuth()
	assert.False(t, s.Authenticated())
	assert.False(t, s.HasRole("cashier"))
	assert.False(t, s.Can("orders.create"))
}

func TestRegenerateKeepsPayloadSwapsID(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	mgr := session.NewManager(store, time.Hour, 5*time.Minute)

	s := mgr.New()
	s.Authenticate(3, []string{"manager"}, nil)
	s.AddFlash(session.FlashInfo, "welcome back")
	require.NoError(t, mgr.Save(ctx, s))
	oldID := s.ID

	require.NoError(t, mgr.Regenerate(ctx, s))
	assert.NotEqual(t, oldID, s.ID)

	// Old identifier is gone, payload lives under the new one.
	_, err := mgr.Load(ctx, oldID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	loaded, err := mgr.Load(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.UserID)
	assert.Equal(t, int64(3), *loaded.UserID)
	assert.Equal(t, []string{"welcome back"}, loaded.ConsumeFlash(session.FlashInfo))
}

func TestRegenerateResetsCSRFToken(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(session.NewMemoryStore(), time.Hour, 5*time.Minute)

	s := mgr.New()
	old := s.CSRF()
	require.NoError(t, mgr.Regenerate(ctx, s))

	assert.ErrorIs(t, s.VerifyCSRF(old), session.ErrCSRFMismatch, "pre-regeneration token must fail")
	assert.NotEqual(t, old, s.CSRF())
}

func TestRotateIfIdle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := session.NewMemoryStore().WithClock(clock)
	mgr := session.NewManager(store, time.Hour, 5*time.Minute, session.WithClock(clock))

	s := mgr.New()
	require.NoError(t, mgr.Save(ctx, s))
	first := s.ID

	rotated, err := mgr.RotateIfIdle(ctx, s)
	require.NoError(t, err)
	assert.False(t, rotated, "fresh session must not rotate")

	now = now.Add(5*time.Minute + time.Second)
	rotated, err = mgr.RotateIfIdle(ctx, s)
	require.NoError(t, err)
	assert.True(t, rotated)
	assert.NotEqual(t, first, s.ID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := session.NewMemoryStore().WithClock(func() time.Time { return now })

	require.NoError(t, store.Save(ctx, "s1", session.Data{}, 30*time.Minute))
	_, err := store.Load(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
