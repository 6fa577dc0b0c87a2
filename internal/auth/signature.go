// Package auth verifies signed inbound webhooks from the SMS provider.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Signature errors.
var (
	ErrMissingToken     = errors.New("missing signature token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrPayloadMismatch  = errors.New("payload hash mismatch")
)

// Claims are the claims Vonage puts in a signed webhook token.
type Claims struct {
	jwt.RegisteredClaims
	APIKey        string `json:"api_key,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
	// PayloadHash is the hex SHA-256 of the request body, when present.
	PayloadHash string `json:"payload_hash,omitempty"`
}

// VerifySignature reports whether token is an HS256 JWT signed with secret.
func VerifySignature(token, secret string) bool {
	_, err := ParseToken(token, secret)
	return err == nil
}

// ParseToken validates token and returns its claims. Only HS256 is accepted.
func ParseToken(token, secret string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, mapJWTError(err)
	}
	return &claims, nil
}

// VerifyPayload checks the payload_hash claim against body. Tokens without
// the claim pass.
func (c *Claims) VerifyPayload(body []byte) error {
	if c.PayloadHash == "" {
		return nil
	}
	sum := sha256.Sum256(body)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), c.PayloadHash) {
		return ErrPayloadMismatch
	}
	return nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token expired", ErrInvalidSignature)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: token not valid yet", ErrInvalidSignature)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: bad signature", ErrInvalidSignature)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: malformed token", ErrInvalidSignature)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
