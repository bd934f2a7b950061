package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName is the fixed cookie carrying the session token,
	// shared between the issuer and the validator.
	SessionCookieName = "token"

	// SessionTTL is the validity window of a minted session. The cookie
	// Max-Age matches it.
	SessionTTL = 7 * 24 * time.Hour

	defaultSessionIssuer = "hdnotes"
)

var (
	// ErrMissingSigningSecret is a startup condition: a session issuer or
	// validator without a secret must never be constructed.
	ErrMissingSigningSecret = errors.New("auth: session signing secret required")

	errMissingUserID = errors.New("auth: user id required")
	errMissingEmail  = errors.New("auth: email required")
)

// SessionClaims is the payload of a minted session token.
type SessionClaims struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	jwt.RegisteredClaims
}

// SessionIssuerConfig configures session token minting.
type SessionIssuerConfig struct {
	SigningSecret []byte
	TTL           time.Duration
	Clock         func() time.Time
}

// SessionIssuer mints signed, time-limited session tokens after a successful
// login. Tokens are stateless: there is no server-side revocation, a minted
// token stays valid until its natural expiry.
type SessionIssuer struct {
	signingSecret []byte
	ttl           time.Duration
	clock         func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer. A missing secret is rejected
// here so the failure surfaces at startup rather than per request.
func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = SessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// TTL reports the configured validity window.
func (i *SessionIssuer) TTL() time.Duration {
	return i.ttl
}

// Mint produces a signed session token for the user.
func (i *SessionIssuer) Mint(userID, email string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errMissingUserID
	}
	if strings.TrimSpace(email) == "" {
		return "", errMissingEmail
	}

	now := i.clock().UTC()
	claims := SessionClaims{
		UserID:    userID,
		UserEmail: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultSessionIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.signingSecret)
}
