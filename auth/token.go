package auth

import (
	"chat-presence/domain/chat"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-presence"

// Claims is the payload carried by a session token.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
}

func NewTokenIssuer(secret string, duration time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), duration: duration}
}

// Generate signs a token for userID valid for the issuer's duration.
// The user id is carried twice: as the subject and as a dedicated claim the
// interceptors read.
func (t *TokenIssuer) Generate(userID string, roles []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses tokenString and checks it was signed by this issuer.
//  1. Only HS256 is accepted, so a token re-signed with "none" or an
//     asymmetric algorithm is rejected before the key is used.
//  2. The issuer claim must match.
//  3. Expiry is enforced by the parser.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Identify maps a presented token to the identity it was issued for.
func (t *TokenIssuer) Identify(tokenString string) (chat.UserID, error) {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("token carries no user id")
	}
	return chat.UserID(claims.UserID), nil
}
