package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/service"
	"atyourdoorstep-auth/internal/transport/http/ez"
	mdw "atyourdoorstep-auth/internal/transport/http/middleware"
)

type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password, ip string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, ip string) (*service.AuthResult, error)
	Revoke(ctx context.Context, refreshToken, ip string) (bool, error)
	GetUserByID(ctx context.Context, id string) (*service.UserProfile, error)
}

// AuthHandler 挂在 /api/v1 下；authMW 额外施加在 /auth 分组上（如每 IP 限速）
type AuthHandler struct {
	svc    AuthAPI
	jwt    *auth.JWTer
	authMW []gin.HandlerFunc
}

func NewAuthHandler(svc AuthAPI, jwter *auth.JWTer, authMW ...gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{svc: svc, jwt: jwter, authMW: authMW}
}

func (h *AuthHandler) Priority() int { return 10 }

type registerReq struct {
	Email     string  `json:"email"     binding:"required,email,max=255"`
	Password  string  `json:"password"  binding:"required,min=8,max=72"`
	FirstName string  `json:"firstName" binding:"required,max=64"`
	LastName  string  `json:"lastName"  binding:"omitempty,max=64"`
	Phone     *string `json:"phone"     binding:"omitempty,max=32"`
}

type loginReq struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type revokeResp struct {
	Revoked bool `json:"revoked"`
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	pub := ez.New(api.Group("/auth", h.authMW...))

	ez.RegisterAction(pub, ez.Action[registerReq, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *registerReq) (*service.AuthResult, error) {
			res, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
				Email:     in.Email,
				Password:  in.Password,
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Phone:     in.Phone,
				IP:        c.ClientIP(),
			})
			if err != nil {
				return nil, mapErr(err)
			}
			return res, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[loginReq, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginReq) (*service.AuthResult, error) {
			res, err := h.svc.Login(c.Request.Context(), in.Email, in.Password, c.ClientIP())
			if err != nil {
				return nil, mapErr(err)
			}
			return res, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[tokenReq, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/refresh",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *tokenReq) (*service.AuthResult, error) {
			res, err := h.svc.Refresh(c.Request.Context(), in.RefreshToken, c.ClientIP())
			if err != nil {
				return nil, mapErr(err)
			}
			return res, nil
		},
	})

	// 未知/已失效令牌也返回成功，revoked=false
	ez.RegisterAction(pub, ez.Action[tokenReq, revokeResp]{
		Method: http.MethodPost,
		Path:   "/revoke",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *tokenReq) (revokeResp, error) {
			ok, err := h.svc.Revoke(c.Request.Context(), in.RefreshToken, c.ClientIP())
			if err != nil {
				return revokeResp{}, mapErr(err)
			}
			return revokeResp{Revoked: ok}, nil
		},
	})

	// /me 必须挂在带 AuthJWT 的分组上
	me := ez.New(api.Group("", mdw.AuthJWT(h.jwt, "")))
	ez.RegisterAction(me, ez.Action[struct{}, *service.UserProfile]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.UserProfile, error) {
			p, err := h.svc.GetUserByID(c.Request.Context(), c.GetString(mdw.KeyUserID))
			if err != nil {
				return nil, mapErr(err)
			}
			if p == nil {
				return nil, ez.NotFound("user not found")
			}
			return p, nil
		},
	})
}
