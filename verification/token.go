// Package verification issues and validates the time-limited signed tokens
// used in email-verification and share/transfer confirmation links.
package verification

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the token was well formed and correctly signed
	// but its lifetime has elapsed.
	ErrTokenExpired = errors.New("verification token has expired")

	// ErrTokenInvalid means the token is structurally invalid or its
	// signature does not verify.
	ErrTokenInvalid = errors.New("verification token is invalid")
)

type claims struct {
	Email   string `json:"email,omitempty"`
	BatchNo string `json:"batchNo,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with a configured lifetime.
type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

// New returns a token service signing with secret. Tokens expire lifetime
// after issue.
func New(secret string, lifetime time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), lifetime: lifetime}
}

// GenerateEmailToken returns a token asserting ownership of an email
// address, for verification links.
func (t *Tokens) GenerateEmailToken(email string) (string, error) {
	return t.sign(claims{Email: email, RegisteredClaims: t.registered()})
}

// GenerateBatchToken returns a token for a pending-survey batch. Signing the
// batch number rather than the recipient email lets one link confirm every
// row of the batch.
func (t *Tokens) GenerateBatchToken(batchNo string) (string, error) {
	return t.sign(claims{BatchNo: batchNo, RegisteredClaims: t.registered()})
}

// DecodeEmailToken verifies token and returns the email address it carries.
func (t *Tokens) DecodeEmailToken(token string) (string, error) {
	c, err := t.parse(token)
	if err != nil {
		return "", err
	}
	if c.Email == "" {
		return "", ErrTokenInvalid
	}
	return c.Email, nil
}

// DecodeBatchToken verifies token and returns the batch number it carries.
func (t *Tokens) DecodeBatchToken(token string) (string, error) {
	c, err := t.parse(token)
	if err != nil {
		return "", err
	}
	if c.BatchNo == "" {
		return "", ErrTokenInvalid
	}
	return c.BatchNo, nil
}

func (t *Tokens) registered() jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
	}
}

func (t *Tokens) sign(c claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

func (t *Tokens) parse(token string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return c, nil
}
