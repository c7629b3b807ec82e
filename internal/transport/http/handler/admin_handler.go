package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"atyourdoorstep-auth/internal/service"
	"atyourdoorstep-auth/internal/transport/http/ez"
)

// RoleAdmin 管理端要求的角色
const RoleAdmin = "Admin"

type AdminAPI interface {
	ListUsers(ctx context.Context, offset, limit int, q string) ([]service.UserProfile, int64, error)
	DeactivateUser(ctx context.Context, id, ip string) (int64, error)
	RevokeUserTokens(ctx context.Context, id, ip string) (int64, error)
}

type AdminHandler struct{ svc AdminAPI }

func NewAdminHandler(svc AdminAPI) *AdminHandler { return &AdminHandler{svc: svc} }

type listQ struct {
	Offset int    `form:"offset,default=0"  binding:"min=0"`
	Limit  int    `form:"limit,default=20"  binding:"min=0,max=100"`
	Q      string `form:"q"                 binding:"max=255"` // 按 email/name 模糊搜
}

type listOut struct {
	Total int64                 `json:"total"`
	Items []service.UserProfile `json:"items"`
}

type userURI struct {
	ID string `uri:"id" binding:"required,max=64"`
}

type revokedOut struct {
	ID            string `json:"id"`
	RevokedTokens int64  `json:"revokedTokens"`
}

// MountAdmin 分组已走 AuthJWT(RoleAdmin)，这里按角色再校验一次
func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)
	roles := []string{RoleAdmin}

	ez.RegisterAction(e, ez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Roles:  roles,
		Handler: func(c *gin.Context, in *listQ) (listOut, error) {
			items, total, err := h.svc.ListUsers(c.Request.Context(), in.Offset, in.Limit, in.Q)
			if err != nil {
				return listOut{}, mapErr(err)
			}
			return listOut{Total: total, Items: items}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[userURI, revokedOut]{
		Method: http.MethodPost,
		Path:   "/users/:id/deactivate",
		Binder: ez.BindURI,
		Roles:  roles,
		Handler: func(c *gin.Context, in *userURI) (revokedOut, error) {
			n, err := h.svc.DeactivateUser(c.Request.Context(), in.ID, c.ClientIP())
			if err != nil {
				return revokedOut{}, mapErr(err)
			}
			return revokedOut{ID: in.ID, RevokedTokens: n}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[userURI, revokedOut]{
		Method: http.MethodPost,
		Path:   "/users/:id/revoke-tokens",
		Binder: ez.BindURI,
		Roles:  roles,
		Handler: func(c *gin.Context, in *userURI) (revokedOut, error) {
			n, err := h.svc.RevokeUserTokens(c.Request.Context(), in.ID, c.ClientIP())
			if err != nil {
				return revokedOut{}, mapErr(err)
			}
			return revokedOut{ID: in.ID, RevokedTokens: n}, nil
		},
	})
}
