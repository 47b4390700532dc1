package auth

import (
	"chat-presence/domain/chat"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_Generate_And_Identify(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Generate("user-1", []string{"user"})
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)

	identity, err := issuer.Identify(token)
	req.NoError(err)
	req.Equal(chat.UserID("user-1"), identity)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("secret", time.Hour)

	// Signed with another secret
	foreign, err := NewTokenIssuer("other", time.Hour).Generate("user-1", nil)
	req.NoError(err)
	_, err = issuer.Identify(foreign)
	req.ErrorIs(err, jwt.ErrTokenSignatureInvalid)

	// Expired
	expired, err := NewTokenIssuer("secret", -time.Minute).Generate("user-1", nil)
	req.NoError(err)
	_, err = issuer.Identify(expired)
	req.ErrorIs(err, jwt.ErrTokenExpired)

	// Garbage
	_, err = issuer.Identify("not-a-token")
	req.Error(err)

	// Valid signature but no identity
	empty, err := issuer.Generate("", nil)
	req.NoError(err)
	_, err = issuer.Identify(empty)
	req.Error(err)
}
