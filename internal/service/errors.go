package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"atyourdoorstep-auth/internal/core/config"
)

// MaxPasswordBytes bcrypt 只接受 72 字节以内的输入
const MaxPasswordBytes = 72

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account inactive")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConfiguration         = config.ErrConfiguration
	// ErrInternal 非预期的存储故障，调用方映射为通用错误
	ErrInternal = errors.New("internal error")
)

// errKind metrics 标签
func errKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

// wrapInternal ctx 错误原样返回，其余记 Error 日志并包成 ErrInternal
func wrapInternal(l *zap.Logger, msg, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	l.Error(msg, zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
