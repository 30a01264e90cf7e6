package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry decodes the embedded expiry claim without verifying the
// signature; the client holds no verification key. Callers must treat any
// error as "expired" (fail closed).
func tokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("session: token has no expiry claim")
	}
	return exp.Time, nil
}

// IsTokenExpired reports whether the current access token is past its
// expiry claim. A missing or undecodable token counts as expired.
func (m *Manager) IsTokenExpired(ctx context.Context) bool {
	token := m.AccessToken(ctx)
	if token == "" {
		return true
	}
	exp, err := tokenExpiry(token)
	if err != nil {
		return true
	}
	return !m.now().Before(exp)
}

// IsTokenExpiring reports whether the token is inside the expiring window
// (time left at or below the margin, default 5 minutes).
func (m *Manager) IsTokenExpiring(ctx context.Context) bool {
	token := m.AccessToken(ctx)
	if token == "" {
		return true
	}
	exp, err := tokenExpiry(token)
	if err != nil {
		return true
	}
	return exp.Sub(m.now()) <= m.expiryMargin
}
