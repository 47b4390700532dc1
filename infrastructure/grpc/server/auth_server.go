package server

import (
	"chat-presence/errors"
	"chat-presence/infrastructure/grpc/api"
	"chat-presence/services"
	"context"
)

type AuthServer struct {
	authService services.IAuthService
}

func NewAuthServer(authService services.IAuthService) *AuthServer {
	return &AuthServer{authService: authService}
}

func (s *AuthServer) Register(_ context.Context, in *api.RegisterRequest) (*api.AuthResponse, error) {
	session, err := s.authService.Register(in.Username, in.Email, in.Password)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.AuthResponse{Token: session.Token.String(), UserID: session.UserID}, nil
}

func (s *AuthServer) Login(_ context.Context, in *api.LoginRequest) (*api.AuthResponse, error) {
	session, err := s.authService.Login(in.Email, in.Password)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.AuthResponse{Token: session.Token.String(), UserID: session.UserID}, nil
}
