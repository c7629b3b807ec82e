package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"atyourdoorstep-auth/internal/core/server"
	mdw "atyourdoorstep-auth/internal/transport/http/middleware"
	resp "atyourdoorstep-auth/internal/transport/http/response"
)

type Options struct {
	RPS         rate.Limit
	Burst       int
	Concurrency int64
	MaxBody     int64
	Timeout     time.Duration
	// Health 为 nil 时 /health 恒为 ok
	Health func(ctx context.Context) error
}

func (o *Options) defaults() {
	if o.RPS <= 0 {
		o.RPS = 200
	}
	if o.Burst <= 0 {
		o.Burst = 400
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 300
	}
	if o.MaxBody <= 0 {
		o.MaxBody = 1 << 20
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
}

func newEngine(l *zap.Logger, o Options) *gin.Engine {
	o.defaults()
	r := server.NewRouter(l)
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(o.RPS, o.Burst),
		mdw.ConcurrencyLimit(o.Concurrency),
		mdw.MaxBodyBytes(o.MaxBody),
		mdw.Timeout(o.Timeout),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if o.Health != nil {
			if err := o.Health(c.Request.Context()); err != nil {
				l.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, "unhealthy"))
				return
			}
		}
		c.JSON(http.StatusOK, resp.OK(gin.H{"ok": 1}))
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
