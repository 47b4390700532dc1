//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"chat-presence/auth"
	"chat-presence/errors"
	"chat-presence/repositories"
	"fmt"
)

type IAuthService interface {
	Login(email, password string) (Session, error)
	Register(username, email, password string) (Session, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

// Session is what a successful login or registration hands back to the client.
type Session struct {
	UserID string
	Token  Token
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, email, password string) (Session, error) {
	// Business rules are checked before any expensive hashing.
	if err := auth.ValidateRegister(auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Generate(userID, []string{"user"})
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{UserID: userID, Token: Token(token)}, nil
}

func (s *AuthService) Login(email, password string) (Session, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Same error as a bad password to prevent user enumeration
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{UserID: user.ID, Token: Token(token)}, nil
}
