// Package app 装配两个进程共用的依赖：DB、角色种子、JWT、缓存、事件、服务。
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/core/cache"
	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/core/config"
	"atyourdoorstep-auth/internal/core/database"
	"atyourdoorstep-auth/internal/core/events"
	"atyourdoorstep-auth/internal/repo"
	"atyourdoorstep-auth/internal/service"
	"atyourdoorstep-auth/pkg/utils"
)

type App struct {
	DB     *gorm.DB
	JWT    *auth.JWTer
	Cache  *cache.Cache // 未配置 redis 时为 nil
	Events events.Publisher
	Auth   *service.AuthService
	Admin  *service.AdminService

	log *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	clk := clock.Real()

	jwter, err := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.AccessTokenTTL(), clk)
	if err != nil {
		return nil, err
	}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	a := &App{DB: db, JWT: jwter, log: l}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			a.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	if err := repo.SeedRoles(ctx, db, cfg.Auth.SeedRoles); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	store := repo.NewStore(db, clk)
	if cfg.Redis.Addr != "" {
		a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := a.Cache.Ping(ctx); err != nil {
			// 缓存只是加速，redis 不可用时照常回源
			l.Warn("redis unreachable, role cache falls back to db", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		store = store.WithRoleStore(repo.NewCachedRoleStore(repo.NewRoleRepo(db), a.Cache, cfg.RoleCacheTTL()))
	}

	a.Events = events.New(cfg.AMQP.URL, cfg.AMQP.Queue)

	a.Auth = service.NewAuthService(store, utils.NewBcryptHasher(cfg.Auth.BcryptCost), jwter, clk, a.Events, l, service.AuthOptions{
		RefreshTTL:         cfg.RefreshTokenTTL(),
		DefaultRole:        cfg.Auth.DefaultRole,
		RequireDefaultRole: cfg.Auth.RequireDefaultRole,
	})
	a.Admin = service.NewAdminService(store, l)
	return a, nil
}

// Health DB 可达即健康
func (a *App) Health(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *App) Close() {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("app close", zap.Error(err))
	}
}
