package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Manager hands out, loads, persists and rotates sessions over a Store.
type Manager struct {
	store       Store
	ttl         time.Duration
	rotateEvery time.Duration
	now         func() time.Time
}

// Option tweaks a Manager.
type Option func(*Manager)

// WithClock overrides the rotation clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager. ttl is the store lifetime of a session;
// rotateEvery is the idle interval after which the identifier is rotated.
func NewManager(store Store, ttl, rotateEvery time.Duration, opts ...Option) *Manager {
	m := &Manager{store: store, ttl: ttl, rotateEvery: rotateEvery, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New creates a fresh, empty session. It is not persisted until Save.
func (m *Manager) New() *Session {
	return &Session{ID: uuid.NewString(), Data: Data{RotatedAt: m.now()}}
}

// Load fetches the session stored under id. ErrNotFound when absent or
// expired.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	d, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, Data: d}, nil
}

// Save persists the session payload under its current identifier.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	return m.store.Save(ctx, s.ID, s.Data, m.ttl)
}

// Destroy removes the session from the store.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	return m.store.Destroy(ctx, s.ID)
}

// Regenerate swaps the identifier while keeping the identity payload: the
// old key is destroyed and the payload is saved under a fresh id. The CSRF
// token is reset along with the identifier, so tokens minted before a
// regeneration never verify afterwards. Used on login and logout, and
// periodically while idle, to resist session fixation.
func (m *Manager) Regenerate(ctx context.Context, s *Session) error {
	old := s.ID
	s.ID = uuid.NewString()
	s.RotatedAt = m.now()
	s.ResetCSRF()
	if err := m.store.Destroy(ctx, old); err != nil {
		return err
	}
	return m.store.Save(ctx, s.ID, s.Data, m.ttl)
}

// RotateIfIdle regenerates the identifier when it has been stable longer
// than the configured interval. Reports whether a rotation happened.
func (m *Manager) RotateIfIdle(ctx context.Context, s *Session) (bool, error) {
	if !s.NeedsRotation(m.rotateEvery, m.now()) {
		return false, nil
	}
	if err := m.Regenerate(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}
