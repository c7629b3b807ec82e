package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewAPIEngine 面向客户端：/api/v1
func NewAPIEngine(l *zap.Logger, reg *Registry, o Options) *gin.Engine {
	r := newEngine(l, o)
	api := r.Group("/api/v1")
	reg.MountAllAPI(api)
	return r
}
