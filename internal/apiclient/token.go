// AngelaMos | 2026
// token.go

package apiclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Claims is the decoded JWT payload, read without signature verification.
// The client only needs the expiry to decide whether a 401 is refreshable;
// the server remains the authority on validity.
type Claims struct {
	Subject   string `json:"sub"`
	IssuedAt  *int64 `json:"iat"`
	ExpiresAt *int64 `json:"exp"`
}

// Expired reports whether the token's expiry has passed. A token without
// an exp claim is treated as non-expiring.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.After(time.Unix(*c.ExpiresAt, 0))
}

// ParseClaims decodes the payload segment of a JWT. A malformed token is
// an error, which callers treat as not refreshable.
func ParseClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("parse claims: expected 3 segments, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parse claims: decode payload: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("parse claims: unmarshal payload: %w", err)
	}

	return &claims, nil
}
