package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is the lifetime of a session token.
	TokenTTL = 24 * time.Hour
	// TokenIssuer is stamped into every token and required on parse.
	TokenIssuer = "collector_hub"

	tokenLeeway = 30 * time.Second
)

// ErrInvalidToken wraps every signature, issuer and lifetime failure.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the profile id as user_id and as the subject.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Token is a signed session token with the time it stops being accepted.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// IssueToken signs a session token for a profile, valid from now.
func IssueToken(userID, secret string, now time.Time) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("issue token: empty profile id")
	}
	expires := now.Add(TokenTTL).UTC().Truncate(time.Second)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

// GenerateJWT issues a session token for userID starting now.
func GenerateJWT(userID, secret string) (string, error) {
	t, err := IssueToken(userID, secret, time.Now())
	return t.Value, err
}

// ParseJWT accepts only HS256 tokens from TokenIssuer whose subject matches
// the user_id claim.
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
