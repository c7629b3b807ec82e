package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/domain"
	"atyourdoorstep-auth/internal/feature/user"
)

type RefreshTokenRepo struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewRefreshTokenRepo(db *gorm.DB, clk clock.Clock) *RefreshTokenRepo {
	return &RefreshTokenRepo{db: db, clock: clk}
}

func (r *RefreshTokenRepo) find(q *gorm.DB) (*domain.RefreshToken, error) {
	var m user.RefreshTokenModel
	err := q.First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *RefreshTokenRepo) FindValidByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	return r.find(r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", hash, false, r.clock.Now()))
}

// FindByHash 不过滤状态（审计用）
func (r *RefreshTokenRepo) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	return r.find(r.db.WithContext(ctx).Where("token_hash = ?", hash))
}

func (r *RefreshTokenRepo) Add(ctx context.Context, t *domain.RefreshToken) error {
	now := r.clock.Now()
	t.CreatedAt = now
	m := user.FromDomainRefreshToken(t)
	m.UpdatedAt = now
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *RefreshTokenRepo) Update(ctx context.Context, t *domain.RefreshToken) error {
	res := r.db.WithContext(ctx).Model(&user.RefreshTokenModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"revoked":                t.Revoked,
		"revoked_at":             t.RevokedAt,
		"revoked_by_ip":          t.RevokedByIP,
		"replaced_by_token_hash": t.ReplacedByTokenHash,
		"expires_at":             t.ExpiresAt,
		"updated_at":             r.clock.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RefreshTokenRepo) MarkRevoked(ctx context.Context, t *domain.RefreshToken) (bool, error) {
	now := r.clock.Now()
	res := r.db.WithContext(ctx).Model(&user.RefreshTokenModel{}).
		Where("id = ? AND revoked = ?", t.ID, false).
		Updates(map[string]any{
			"revoked":       true,
			"revoked_at":    now,
			"revoked_by_ip": t.RevokedByIP,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = &now
	return true, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID, ip string) (int64, error) {
	now := r.clock.Now()
	res := r.db.WithContext(ctx).Model(&user.RefreshTokenModel{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":       true,
			"revoked_at":    now,
			"revoked_by_ip": ip,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}
