package services_test

import (
	"chat-presence/auth"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/repositories"
	"chat-presence/services"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("secret", 24*time.Hour)
	svc := services.NewAuthService(mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!"

		// Expect CreateUser to be called with a hashed password, never the plain one
		mockRepo.EXPECT().
			CreateUser("alice", "alice@example.com", gomock.Not(password)).
			Return("user-uuid", nil).
			Times(1)

		session, err := svc.Register("alice", "alice@example.com", password)

		req.NoError(err)
		req.Equal("user-uuid", session.UserID)
		identity, err := tokens.Identify(session.Token.String())
		req.NoError(err)
		req.Equal("user-uuid", identity.String())
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register("alice", "alice@example.com", "simplepassword")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("bob", "bob@example.com", gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("bob", "bob@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("secret", 24*time.Hour)
	svc := services.NewAuthService(mockRepo, tokens)

	hash, err := auth.HashPassword("ComplexPass123!")
	require.NoError(t, err)
	user := repositories.User{ID: "user-uuid", Email: "alice@example.com", PasswordHash: hash, Roles: []string{"user"}}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail("alice@example.com").Return(user, nil)

		session, err := svc.Login("alice@example.com", "ComplexPass123!")

		req.NoError(err)
		req.Equal("user-uuid", session.UserID)
		claims, err := tokens.Validate(session.Token.String())
		req.NoError(err)
		req.Equal([]string{"user"}, claims.Roles)
	})

	t.Run("should hide whether the account exists", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail("alice@example.com").Return(user, nil)
		mockRepo.EXPECT().GetUserByEmail("ghost@example.com").Return(repositories.User{}, errors.ErrInvalidCredentials)

		_, wrongPassword := svc.Login("alice@example.com", "WrongPass123!")
		_, unknownUser := svc.Login("ghost@example.com", "ComplexPass123!")

		req.ErrorIs(wrongPassword, errors.ErrInvalidCredentials)
		req.ErrorIs(unknownUser, errors.ErrInvalidCredentials)
	})
}
