// Package token issues and verifies the signed, purpose-tagged tokens used for
// invites, password resets, email changes and sessions.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTTL = 24 * time.Hour

// Config is injected by the caller; the codec never reads global settings.
type Config struct {
	Secret    []byte
	Algorithm string // HS256, HS384 or HS512
	TTL       map[domain.TokenPurpose]time.Duration
}

// Claims is the payload of every token. Email is only set for email-change
// tokens and PasswordStamp only for password-reset tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type          domain.TokenPurpose `json:"type"`
	Email         string              `json:"email,omitempty"`
	PasswordStamp string              `json:"pwd,omitempty"`
}

// SubjectID returns the numeric subject the token was issued for.
func (c *Claims) SubjectID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

type Option func(*Claims)

func WithEmail(email string) Option {
	return func(c *Claims) { c.Email = email }
}

func WithPasswordStamp(stamp string) Option {
	return func(c *Claims) { c.PasswordStamp = stamp }
}

type Codec struct {
	key    []byte
	method jwt.SigningMethod
	ttl    map[domain.TokenPurpose]time.Duration
	now    func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	ttl := make(map[domain.TokenPurpose]time.Duration, len(cfg.TTL))
	for p, d := range cfg.TTL {
		ttl[p] = d
	}
	return &Codec{key: cfg.Secret, method: method, ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) TTL(purpose domain.TokenPurpose) time.Duration {
	if d, ok := c.ttl[purpose]; ok && d > 0 {
		return d
	}
	return defaultTTL
}

// Issue signs a token for subjectID restricted to purpose.
func (c *Codec) Issue(subjectID int64, purpose domain.TokenPurpose, opts ...Option) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}
	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(purpose))),
		},
		Type: purpose,
	}
	for _, opt := range opts {
		opt(claims)
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose, in that order.
func (c *Codec) Verify(raw string, expected domain.TokenPurpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Type == "" || !claims.Type.Valid() {
		return nil, domain.ErrTokenMalformed
	}
	if id, perr := strconv.ParseInt(claims.Subject, 10, 64); perr != nil || id <= 0 {
		return nil, domain.ErrTokenMalformed
	}
	if claims.Type != expected {
		return nil, domain.ErrPurposeMismatch
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
}

// Retryable reports whether the client can fix the failure by requesting a
// fresh token. Signature and format failures are terminal.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrTokenExpired)
}
