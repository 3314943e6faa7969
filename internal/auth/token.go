// Package auth contains bearer-token helpers for client-side control flow.
//
// Nothing here verifies a signature. The backend remains authoritative and
// will reject a bad token with a 401; these helpers only decode claims the
// client needs for UX (current user id, proactive expiry warnings).
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

// UserID extracts the authenticated user's id from the access token.
//
// The backend puts the id in the "user_id" claim; "sub" is accepted as a
// fallback.
func UserID(token string) (types.ID, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return "", err
	}

	if raw, ok := claims["user_id"]; ok {
		return claimID(raw)
	}
	if raw, ok := claims["sub"]; ok {
		return claimID(raw)
	}
	return "", fmt.Errorf("token has no user_id or sub claim")
}

// ExpiresSoon reports whether the token is already expired or will expire
// within the given window. Tokens without an exp claim are treated as
// non-expiring; the server will 401 if that assumption is wrong.
func ExpiresSoon(token string, window time.Duration) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return true, fmt.Errorf("token is empty")
	}
	claims, err := parseClaims(token)
	if err != nil {
		return false, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, nil
	}
	return time.Until(exp.Time) <= window, nil
}

func parseClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

func claimID(raw any) (types.ID, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty user id claim")
		}
		return types.ID(v), nil
	case float64:
		return types.ID(fmt.Sprintf("%.0f", v)), nil
	default:
		return "", fmt.Errorf("unsupported user id claim type %T", raw)
	}
}
