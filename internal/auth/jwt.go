// Package auth implements the credential gate: bearer tokens issued at
// login and verified before a connection may reach the signaling core.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const maxTokenLen = 4096

// TokenIssuer signs and verifies HMAC-SHA256 bearer tokens (JWT compact
// form). The subject claim is the account id.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) TokenIssuer {
	return TokenIssuer{secret: []byte(secret), now: time.Now}
}

type claims struct {
	Sub string `json:"sub"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

func (t TokenIssuer) Sign(accountID string, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	hdr, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	now := t.now()
	body, err := json.Marshal(claims{Sub: accountID, Iat: now.Unix(), Exp: now.Add(ttl).Unix()})
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(hdr) + "." + enc.EncodeToString(body)
	return signingInput + "." + enc.EncodeToString(t.sign(signingInput)), nil
}

// Verify checks the signature and expiry and returns the token's account
// id. Only HS256 is accepted; anything else is an invalid token, never a
// fallthrough.
func (t TokenIssuer) Verify(token string) (string, error) {
	if len(token) == 0 || len(token) > maxTokenLen {
		return "", ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}

	enc := base64.RawURLEncoding
	rawHeader, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidToken
	}
	var hdr header
	if err := json.Unmarshal(rawHeader, &hdr); err != nil || hdr.Alg != "HS256" {
		return "", ErrInvalidToken
	}

	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal(sig, t.sign(parts[0]+"."+parts[1])) {
		return "", ErrInvalidToken
	}

	rawClaims, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidToken
	}
	var c claims
	if err := json.Unmarshal(rawClaims, &c); err != nil || c.Sub == "" {
		return "", ErrInvalidToken
	}
	if c.Exp != 0 && t.now().Unix() >= c.Exp {
		return "", ErrExpiredToken
	}
	return c.Sub, nil
}

func (t TokenIssuer) sign(input string) []byte {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}
