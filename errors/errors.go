package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Taxonomy roots. Every error surfaced by the core wraps one of these.
var (
	ErrValidation  = fmt.Errorf("validation error")
	ErrPersistence = fmt.Errorf("persistence error")
)

var (
	ErrUnknownUser        = fmt.Errorf("%w: unknown user", ErrValidation)
	ErrEmptyContent       = fmt.Errorf("%w: empty content", ErrValidation)
	ErrContentTooLong     = fmt.Errorf("%w: content too long", ErrValidation)
	ErrInvalidIdentity    = fmt.Errorf("%w: invalid identity", ErrValidation)
	ErrInvalidPassword    = fmt.Errorf("%w: invalid password", ErrValidation)
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrBackpressure       = fmt.Errorf("connection buffer full")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// Persistence wraps an adapter failure so callers can match ErrPersistence.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func IsValidation(err error) bool {
	return stderrors.Is(err, ErrValidation)
}

func IsPersistence(err error) bool {
	return stderrors.Is(err, ErrPersistence)
}

// MapToGRPCError translates the error taxonomy into gRPC status codes.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case stderrors.Is(err, ErrUserAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case stderrors.Is(err, ErrMessageNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stderrors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrPersistence):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
