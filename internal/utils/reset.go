package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrResetTokenInvalid covers every way a password-reset token can be bad:
// wrong signature, expired, or minted for a different purpose. Callers get
// no finer detail so the user-facing message stays generic.
var ErrResetTokenInvalid = errors.New("invalid reset token")

// NewResetToken builds and signs a short-lived HS256 JWT authorizing a
// password reset for one user. The subject carries the user id and a
// purpose claim prevents the token from being accepted anywhere else.
func NewResetToken(secret string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"pur": "password_reset",
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseResetToken verifies a reset token and returns the user id it was
// minted for.
func ParseResetToken(secret, raw string) (int64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrResetTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, ErrResetTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrResetTokenInvalid
	}
	if pur, _ := claims["pur"].(string); pur != "password_reset" {
		return 0, ErrResetTokenInvalid
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrResetTokenInvalid
	}
	return id, nil
}
