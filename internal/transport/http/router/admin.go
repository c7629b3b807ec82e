package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/transport/http/handler"
	mdw "atyourdoorstep-auth/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1 统一要求 Admin 角色
func NewAdminEngine(l *zap.Logger, reg *Registry, jwter *auth.JWTer, o Options) *gin.Engine {
	r := newEngine(l, o)
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, handler.RoleAdmin))
	reg.MountAllAdmin(admin)
	return r
}
