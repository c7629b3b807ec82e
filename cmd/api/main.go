package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"atyourdoorstep-auth/internal/app"
	"atyourdoorstep-auth/internal/core/config"
	"atyourdoorstep-auth/internal/core/logger"
	"atyourdoorstep-auth/internal/core/server"
	"atyourdoorstep-auth/internal/transport/http/handler"
	mdw "atyourdoorstep-auth/internal/transport/http/middleware"
	"atyourdoorstep-auth/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfgPath := pflag.String("config", "", "config file path (default $CONFIG_PATH or ./configs/config.local.yaml)")
	pflag.Parse()

	cfg := config.Load(*cfgPath)
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logger.ToWriter(log, zapcore.DebugLevel)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	// 登录/注册按 IP 再限一层，挡撞库
	router.Register(handler.NewAuthHandler(a.Auth, a.JWT, mdw.RateLimitPerIP(5, 20)))
	r := router.NewAPIEngine(log, router.Default, router.Options{Health: a.Health})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	errLog, _ := logger.ToStdLogger(log, zapcore.ErrorLevel)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
		errLog,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("auth api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	// 异步启动
	go func() {
		if err := server.StartHTTP(srv, log); err != nil {
			log.Fatal("auth api start FAILED", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Shutdown(srv, log, 10*time.Second)
}
