package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
)

// ErrTokenInvalid is returned for malformed, expired or forged credentials.
var ErrTokenInvalid = errors.New("auth: invalid token")

// Claims is the payload of a locally issued credential.
type Claims struct {
	jwt.RegisteredClaims
	Name string   `json:"name"`
	Role roles.ID `json:"role"`
}

// TokenIssuer signs and verifies HS256 credentials.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. A non-positive ttl defaults to 12h.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and verifying.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

// Issue signs a credential for the principal.
func (i *TokenIssuer) Issue(p session.Principal) (session.Credential, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Name: p.DisplayName,
		Role: p.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return session.Credential(signed), nil
}

// Parse verifies a credential and returns its claims.
func (i *TokenIssuer) Parse(c session.Credential) (*Claims, error) {
	token, err := jwt.ParseWithClaims(string(c), &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing subject or role", ErrTokenInvalid)
	}
	return claims, nil
}

// Check verifies that c is a live credential issued for p. It serves as the
// session credential check in local mode.
func (i *TokenIssuer) Check(p session.Principal, c session.Credential) error {
	claims, err := i.Parse(c)
	if err != nil {
		return err
	}
	if claims.Subject != p.ID || claims.Role != p.Role {
		return fmt.Errorf("%w: issued for another principal", ErrTokenInvalid)
	}
	return nil
}
