package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is the scheme name returned alongside access tokens.
const TokenType = "Bearer"

const tokenIssuer = "stratatrack"

// ErrInvalidToken is returned by Parse for any token that is malformed,
// expired, or not signed with the issuer's secret.
var ErrInvalidToken = errors.New("invalid access token")

// Claims are the JWT claims carried by an access token.
// Subject holds the user's ObjectID hex.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. The secret must be at least 32
// bytes when secure is true.
func NewTokenIssuer(secret string, ttl time.Duration, secure bool) (*TokenIssuer, error) {
	if secret == "" {
		return nil, &SessionConfigError{Message: "jwt secret is empty; provide at least 32 random characters"}
	}
	if secure && weakKey(secret) {
		return nil, &SessionConfigError{Message: "jwt secret is too weak for production; provide at least 32 random characters"}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns how long issued tokens stay valid.
func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

// Issue signs a new access token for the user.
func (ti *TokenIssuer) Issue(userID, username string) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies the token and returns its claims.
func (ti *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
