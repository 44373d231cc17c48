// Package session implements the server-side visitor session: the
// authenticated identity payload, one-time flash messages, and the anti-CSRF
// token. Sessions live in a pluggable Store keyed by an opaque identifier;
// the identifier is rotated on login, on logout, and periodically while idle
// to bound fixation and hijacking windows.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

// Flash severities.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

var (
	// ErrNotFound is returned by a Store when no session exists under the
	// given identifier.
	ErrNotFound = errors.New("session not found")
	// ErrCSRFMissing means the request carried no token at all.
	ErrCSRFMissing = errors.New("csrf token missing")
	// ErrCSRFMismatch means the request carried a token that does not match
	// the session's current token. Calling code treats both CSRF errors the
	// same way: reject the request. They stay distinct for observability.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
)

// Data is the persisted session payload. The user id and the role and
// permission caches are set and cleared together; they are never observed
// half-populated.
type Data struct {
	UserID       *int64              `json:"user_id,omitempty"`
	Roles        []string            `json:"roles,omitempty"`
	Permissions  []string            `json:"permissions,omitempty"`
	CSRFToken    string              `json:"csrf_token,omitempty"`
	Flash        map[string][]string `json:"flash,omitempty"`
	RememberHash string              `json:"remember_hash,omitempty"`
	RotatedAt    time.Time           `json:"rotated_at"`
}

// Session couples a payload with its current identifier.
type Session struct {
	ID string
	Data
}

// Authenticated reports whether a user id is attached.
func (s *Session) Authenticated() bool { return s.UserID != nil }

// Authenticate attaches the user id together with its role and permission
// caches in one step.
func (s *Session) Authenticate(userID int64, roles, permissions []string) {
	s.UserID = &userID
	s.Roles = roles
	s.Permissions = permissions
}

// ClearAuth drops the identity payload and caches together, along with the
// remember-token association.
func (s *Session) ClearAuth() {
	s.UserID = nil
	s.Roles = nil
	s.Permissions = nil
	s.RememberHash = ""
}

// HasRole checks the cached role list. The cache is populated at login and
// only refreshed by the next login.
func (s *Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Can checks the cached permission list.
func (s *Session) Can(permission string) bool {
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CSRF returns the session's token, minting it on first use. The token stays
// stable until the session is destroyed or regenerated with a token reset.
func (s *Session) CSRF() string {
	if s.CSRFToken == "" {
		s.CSRFToken = randomToken()
	}
	return s.CSRFToken
}

// VerifyCSRF compares a submitted token against the session's current one in
// constant time.
func (s *Session) VerifyCSRF(token string) error {
	if token == "" {
		return ErrCSRFMissing
	}
	if s.CSRFToken == "" {
		return ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.CSRFToken)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}

// ResetCSRF discards the current token; the next CSRF call mints a new one.
func (s *Session) ResetCSRF() { s.CSRFToken = "" }

// AddFlash queues a one-time message under the given severity.
func (s *Session) AddFlash(severity, message string) {
	if s.Flash == nil {
		s.Flash = map[string][]string{}
	}
	s.Flash[severity] = append(s.Flash[severity], message)
}

// ConsumeFlash returns and clears the queue for one severity. A second read
// observes an empty queue.
func (s *Session) ConsumeFlash(severity string) []string {
	if s.Flash == nil {
		return nil
	}
	msgs := s.Flash[severity]
	delete(s.Flash, severity)
	return msgs
}

// NeedsRotation reports whether the identifier has been stable longer than
// the given interval.
func (s *Session) NeedsRotation(interval time.Duration, now time.Time) bool {
	return now.Sub(s.RotatedAt) >= interval
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure means the process cannot run safely
	}
	return hex.EncodeToString(buf)
}
