package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "atyourdoorstep-auth/internal/transport/http/response"
)

// MaxBodyBytes 认证接口请求体很小，超限直接 400
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
