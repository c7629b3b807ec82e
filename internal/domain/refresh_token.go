package domain

import (
	"context"
	"time"
)

type TokenState string

const (
	TokenActive  TokenState = "active"
	TokenRotated TokenState = "rotated"
	TokenRevoked TokenState = "revoked"
	TokenExpired TokenState = "expired"
)

type RefreshToken struct {
	ID     string
	UserID string
	// Token 明文，只在签发时返回一次，从不持久化
	Token               string
	TokenHash           string
	ExpiresAt           time.Time
	Revoked             bool
	RevokedAt           *time.Time
	RevokedByIP         string
	ReplacedByTokenHash string
	CreatedByIP         string
	CreatedAt           time.Time
}

// IsActive 有效条件：未撤销且未过期
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

func (t *RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.Revoked && t.ReplacedByTokenHash != "":
		return TokenRotated
	case t.Revoked:
		return TokenRevoked
	case !t.ExpiresAt.After(now):
		return TokenExpired
	default:
		return TokenActive
	}
}

// RefreshTokenStore FindValidByHash 内部过滤已撤销/已过期/软删除
type RefreshTokenStore interface {
	FindValidByHash(ctx context.Context, hash string) (*RefreshToken, error)
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)
	Add(ctx context.Context, t *RefreshToken) error
	Update(ctx context.Context, t *RefreshToken) error
	// MarkRevoked 条件更新（仅当 revoked = false），返回是否抢到
	MarkRevoked(ctx context.Context, t *RefreshToken) (bool, error)
	RevokeAllForUser(ctx context.Context, userID, ip string) (int64, error)
}

// Stores 绑定到同一个连接/事务的一组仓储
type Stores struct {
	Users  UserStore
	Roles  RoleStore
	Tokens RefreshTokenStore
}

// Transactor fn 返回错误则整体回滚
type Transactor interface {
	Stores() Stores
	InTx(ctx context.Context, fn func(s Stores) error) error
}
