package server

import (
	"chat-presence/domain/chat"
	"chat-presence/infrastructure/grpc/api"
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Methods reachable without a token.
var publicMethods = map[string]struct{}{
	api.AuthService_Login_FullMethodName:    {},
	api.AuthService_Register_FullMethodName: {},
}

type contextKey string

const UserIDKey contextKey = "user_id"

// Identifier maps a presented credential to an identity.
type Identifier interface {
	Identify(token string) (chat.UserID, error)
}

// IdentityFromContext returns the identity injected by the auth interceptors.
func IdentityFromContext(ctx context.Context) (chat.UserID, bool) {
	identity, ok := ctx.Value(UserIDKey).(chat.UserID)
	return identity, ok && identity != ""
}

func authenticate(ctx context.Context, identifier Identifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata is missing")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
	}
	identity, err := identifier.Identify(strings.TrimPrefix(values[0], "Bearer "))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return context.WithValue(ctx, UserIDKey, identity), nil
}

// AuthInterceptor validates the bearer token of unary calls.
func AuthInterceptor(identifier Identifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := publicMethods[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		newCtx, err := authenticate(ctx, identifier)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

// StreamAuthInterceptor validates the bearer token once, when the stream opens.
func StreamAuthInterceptor(identifier Identifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, ok := publicMethods[info.FullMethod]; ok {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), identifier)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}
