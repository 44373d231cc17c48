// Package auth implements the identity core: credential verification with
// brute-force lockout, persistent "remember me" logins, and role/permission
// resolution cached on the session.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ederavi/bistro-pos/internal/model"
	"github.com/ederavi/bistro-pos/internal/session"
	"github.com/ederavi/bistro-pos/internal/utils"
)

// FailureReason says why a login attempt was rejected. It exists for audit
// logging and tests; the user-facing message stays generic for every reason
// so identifiers cannot be enumerated.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonBadCredentials
	ReasonLockedOut
)

// LoginResult is the outcome value of a login attempt. Expected rejections
// (wrong secret, unknown identifier, lockout) are results, not errors;
// errors are reserved for store faults.
type LoginResult struct {
	OK     bool
	Reason FailureReason
	User   *model.User
	// RememberSecret carries the raw remember token exactly once, when a
	// "remember me" login minted one. It is never persisted in cleartext.
	RememberSecret string
}

// Config carries the security tunables (spec'd defaults: 5 attempts,
// 15 minute lockout, 30 day remember tokens).
type Config struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	RememberTTL      time.Duration
	BcryptCost       int
	ResetSecret      string
	ResetTTL         time.Duration
}

// Service resolves credentials against the user store and maintains the
// session's identity payload. Request-scoped collaborators are passed in
// explicitly; the service holds no global state.
type Service struct {
	users    UserStore
	sessions *session.Manager
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

// Option tweaks a Service.
type Option func(*Service)

// WithClock overrides the lockout clock (for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, sessions *session.Manager, cfg Config, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{users: users, sessions: sessions, cfg: cfg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttemptLogin verifies an identifier/secret pair and, on success, attaches
// the user to the session: the user id and the role/permission caches are
// populated together, the session identifier is rotated, and the login
// timestamp is stamped. When remember is set a fresh remember token is
// minted and its raw secret returned for cookie delivery.
//
// A locked account fails regardless of secret correctness until the lockout
// deadline passes. Unknown identifiers, deactivated and deleted accounts all
// report plain bad credentials.
func (s *Service) AttemptLogin(ctx context.Context, sess *session.Session, identifier, secret string, remember bool) (LoginResult, error) {
	u, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login lookup: %w", err)
	}
	if u == nil || !u.IsActive || u.DeletedAt != nil {
		return LoginResult{Reason: ReasonBadCredentials}, nil
	}

	now := s.now()
	if u.Locked(now) {
		s.log.Warn().
			Int64("user_id", u.ID).
			Time("locked_until", *u.LockedUntil).
			Msg("login rejected: account locked")
		return LoginResult{Reason: ReasonLockedOut}, nil
	}

	if !utils.VerifyPassword(u.PasswordHash, secret) {
		failed := u.FailedLogins + 1
		var until *time.Time
		if failed >= s.cfg.LockoutThreshold {
			t := now.Add(s.cfg.LockoutDuration)
			until = &t
			s.log.Warn().
				Int64("user_id", u.ID).
				Int("failed_attempts", failed).
				Time("locked_until", t).
				Msg("account locked after repeated failures")
		}
		if err := s.users.SaveLoginFailure(ctx, u.ID, failed, until); err != nil {
			return LoginResult{}, fmt.Errorf("record login failure: %w", err)
		}
		return LoginResult{Reason: ReasonBadCredentials}, nil
	}

	if err := s.finishLogin(ctx, sess, u, now); err != nil {
		return LoginResult{}, err
	}

	// The token row is written only once the login side effects are in;
	// aborting a login must not leave an active token behind. A failed mint
	// degrades to a plain login without the cookie.
	res := LoginResult{OK: true, User: u}
	if remember {
		tok, err := utils.NewRememberSecret(s.cfg.RememberTTL)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", u.ID).Msg("remember token mint failed")
			return res, nil
		}
		hash := utils.HashSecret(tok.Raw)
		if err := s.users.InsertRememberToken(ctx, u.ID, hash, tok.Exp); err != nil {
			s.log.Warn().Err(err).Int64("user_id", u.ID).Msg("remember token store failed")
			return res, nil
		}
		sess.RememberHash = hash
		res.RememberSecret = tok.Raw
	}
	return res, nil
}

// LoginWithRememberToken authenticates from a presented remember secret.
// It is only consulted when the session carries no user; tokens are not
// rotated on use, so a token keeps working until logout or expiry.
func (s *Service) LoginWithRememberToken(ctx context.Context, sess *session.Session, raw string) (LoginResult, error) {
	if sess.Authenticated() {
		return LoginResult{OK: true}, nil
	}
	hash := utils.HashSecret(raw)
	u, err := s.users.FindUserByRememberToken(ctx, hash, s.now())
	if err != nil {
		return LoginResult{}, fmt.Errorf("remember token lookup: %w", err)
	}
	if u == nil {
		return LoginResult{Reason: ReasonBadCredentials}, nil
	}
	sess.RememberHash = hash
	if err := s.finishLogin(ctx, sess, u, s.now()); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{OK: true, User: u}, nil
}

// finishLogin performs the shared success side effects: persistence of the
// reset counters and last-login stamp, the atomic session payload update,
// and the fixation-resisting identifier rotation.
func (s *Service) finishLogin(ctx context.Context, sess *session.Session, u *model.User, now time.Time) error {
	if err := s.users.SaveLoginSuccess(ctx, u.ID, now); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("resolve roles: %w", err)
	}
	perms, err := s.users.Permissions(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("resolve permissions: %w", err)
	}
	sess.Authenticate(u.ID, roles, dedupe(perms))
	if err := s.sessions.Regenerate(ctx, sess); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	s.log.Info().Int64("user_id", u.ID).Msg("login")
	return nil
}

// Logout removes the session's remember token (if one authenticated it or
// was minted for it), clears the identity payload and rotates the session
// identifier.
func (s *Service) Logout(ctx context.Context, sess *session.Session) error {
	if sess.RememberHash != "" {
		if err := s.users.DeleteRememberToken(ctx, sess.RememberHash); err != nil {
			return fmt.Errorf("delete remember token: %w", err)
		}
	}
	sess.ClearAuth()
	if err := s.sessions.Regenerate(ctx, sess); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return nil
}

// HasRole and Can consult only the session's caches, populated at login.
// Grant changes made after login take effect on the next login.
func (s *Service) HasRole(sess *session.Session, role string) bool { return sess.HasRole(role) }

func (s *Service) Can(sess *session.Session, permission string) bool { return sess.Can(permission) }

// RequireAuth fails with ErrUnauthenticated when no user is attached.
func (s *Service) RequireAuth(sess *session.Session) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// RequireRole fails with ErrUnauthenticated or ErrForbidden. No side
// effects beyond the returned error.
func (s *Service) RequireRole(sess *session.Session, role string) error {
	if err := s.RequireAuth(sess); err != nil {
		return err
	}
	if !sess.HasRole(role) {
		return ErrForbidden
	}
	return nil
}

// RequirePermission is RequireRole for a permission name.
func (s *Service) RequirePermission(sess *session.Session, permission string) error {
	if err := s.RequireAuth(sess); err != nil {
		return err
	}
	if !sess.Can(permission) {
		return ErrForbidden
	}
	return nil
}

// ChangePassword re-verifies the current secret before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, sess *session.Session, current, next string) error {
	if err := s.RequireAuth(sess); err != nil {
		return err
	}
	u, err := s.users.FindByID(ctx, *sess.UserID)
	if err != nil {
		return fmt.Errorf("change password lookup: %w", err)
	}
	if u == nil || !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrUnauthenticated
	}
	hash, err := utils.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

// RequestPasswordReset mints a short-lived reset token for the identified
// user. Unknown identifiers yield an empty token with no error, so the
// response cannot reveal whether the account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, identifier string) (string, error) {
	u, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("reset lookup: %w", err)
	}
	if u == nil || !u.IsActive || u.DeletedAt != nil {
		return "", nil
	}
	return utils.NewResetToken(s.cfg.ResetSecret, u.ID, s.cfg.ResetTTL)
}

// ResetPassword verifies a reset token and stores the new password hash.
func (s *Service) ResetPassword(ctx context.Context, rawToken, next string) error {
	userID, err := utils.ParseResetToken(s.cfg.ResetSecret, rawToken)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
