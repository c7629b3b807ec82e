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

	router.Register(handler.NewAdminHandler(a.Admin))
	r := router.NewAdminEngine(log, router.Default, a.JWT, router.Options{Health: a.Health})

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	errLog, _ := logger.ToStdLogger(log, zapcore.ErrorLevel)
	srv := server.BuildServer(addr, r, 5*time.Second, 10*time.Second, 60*time.Second, errLog)

	// 启动前打印可点击地址
	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil {
			log.Fatal("admin api start FAILED", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Shutdown(srv, log, 10*time.Second)
}
