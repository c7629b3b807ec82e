package repo

import (
	"context"
	"time"

	"atyourdoorstep-auth/internal/core/cache"
	"atyourdoorstep-auth/internal/domain"
)

// CachedRoleStore 角色是启动期种子数据，只读，可缓存；用户与令牌不进缓存
type CachedRoleStore struct {
	next  domain.RoleStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedRoleStore(next domain.RoleStore, c *cache.Cache, ttl time.Duration) *CachedRoleStore {
	return &CachedRoleStore{next: next, cache: c, ttl: ttl}
}

func (s *CachedRoleStore) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, "role:name:"+name, s.ttl, func(ctx context.Context) (*domain.Role, error) {
		return s.next.FindByName(ctx, name)
	})
}
