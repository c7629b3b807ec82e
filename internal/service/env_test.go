package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/core/database"
	"atyourdoorstep-auth/internal/repo"
	"atyourdoorstep-auth/pkg/utils"
)

type testEnv struct {
	db    *gorm.DB
	store *repo.Store
	clock *clock.Fake
	jwt   *auth.JWTer
	auth  *AuthService
	admin *AdminService
}

type envOpt func(*envConfig)

type envConfig struct {
	seed        []string
	requireRole bool
}

func withoutRoles() envOpt       { return func(c *envConfig) { c.seed = nil } }
func requireDefaultRole() envOpt { return func(c *envConfig) { c.requireRole = true } }

func newTestEnv(t *testing.T, opts ...envOpt) *testEnv {
	t.Helper()
	cfg := envConfig{seed: []string{"Admin", "Manager", "User"}}
	for _, o := range opts {
		o(&cfg)
	}

	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := repo.SeedRoles(context.Background(), db, cfg.seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	jwter, err := auth.NewJWTer("test-secret", "ayds", "ayds-clients", time.Hour, clk)
	if err != nil {
		t.Fatalf("jwter: %v", err)
	}
	store := repo.NewStore(db, clk)
	svc := NewAuthService(store, utils.NewBcryptHasher(bcrypt.MinCost), jwter, clk, nil, nil, AuthOptions{
		RefreshTTL:         7 * 24 * time.Hour,
		DefaultRole:        "User",
		RequireDefaultRole: cfg.requireRole,
	})
	return &testEnv{db: db, store: store, clock: clk, jwt: jwter, auth: svc, admin: NewAdminService(store, nil)}
}

func (e *testEnv) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Email: email, Password: password, FirstName: "A", LastName: "B", IP: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func (e *testEnv) countTokens(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.db.Table("refresh_tokens").Count(&n).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	return n
}
