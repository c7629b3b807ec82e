package handler

import (
	"context"
	"errors"

	"atyourdoorstep-auth/internal/service"
	"atyourdoorstep-auth/internal/transport/http/ez"
	resp "atyourdoorstep-auth/internal/transport/http/response"
)

// mapErr 业务错误 → 响应码；其余一律 500 且不带细节
func mapErr(err error) error {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return ez.Conflict("email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		return ez.Unauthorized("invalid credentials")
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		return ez.Unauthorized("invalid or expired token")
	case errors.Is(err, service.ErrAccountInactive):
		return ez.Forbidden("account inactive")
	case errors.Is(err, service.ErrUserNotFound):
		return ez.NotFound("user not found")
	case errors.Is(err, service.ErrInvalidInput):
		return ez.BadRequest(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return &ez.AErr{Code: resp.CodeTimeout, Msg: "timeout"}
	default:
		return ez.Internal("internal error", err)
	}
}
