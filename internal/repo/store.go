package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/domain"
	"atyourdoorstep-auth/internal/feature/user"
)

// Store 事务边界；Roles 可替换为带缓存的实现（只在事务外使用缓存）
type Store struct {
	db    *gorm.DB
	clock clock.Clock
	roles domain.RoleStore
}

func NewStore(db *gorm.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

// WithRoleStore 替换事务外使用的 RoleStore
func (s *Store) WithRoleStore(r domain.RoleStore) *Store {
	cp := *s
	cp.roles = r
	return &cp
}

func (s *Store) bind(db *gorm.DB) domain.Stores {
	return domain.Stores{
		Users:  NewUserRepo(db, s.clock),
		Roles:  NewRoleRepo(db),
		Tokens: NewRefreshTokenRepo(db, s.clock),
	}
}

func (s *Store) Stores() domain.Stores {
	st := s.bind(s.db)
	if s.roles != nil {
		st.Roles = s.roles
	}
	return st
}

func (s *Store) InTx(ctx context.Context, fn func(domain.Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.bind(tx))
	})
}

func Migrate(db *gorm.DB) error { return db.AutoMigrate(user.Models()...) }

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 不完全依赖 gorm.ErrDuplicatedKey，部分驱动未做翻译
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
