package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"atyourdoorstep-auth/internal/domain"
)

type AdminService struct {
	store domain.Transactor
	log   *zap.Logger
}

func NewAdminService(store domain.Transactor, l *zap.Logger) *AdminService {
	if l == nil {
		l = zap.NewNop()
	}
	return &AdminService{store: store, log: l}
}

func (s *AdminService) ListUsers(ctx context.Context, offset, limit int, q string) (out []UserProfile, total int64, err error) {
	defer func() { observe("list_users", err) }()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	users, total, err := s.store.Stores().Users.List(ctx, offset, limit, q)
	if err != nil {
		return nil, 0, s.internal("list users", err)
	}
	out = make([]UserProfile, 0, len(users))
	for i := range users {
		out = append(out, profileOf(&users[i]))
	}
	return out, total, nil
}

// DeactivateUser 停用账号并撤销其全部有效刷新令牌（同一事务）
func (s *AdminService) DeactivateUser(ctx context.Context, id, ip string) (revoked int64, err error) {
	defer func() { observe("deactivate", err) }()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	wctx := context.WithoutCancel(ctx)
	err = s.store.InTx(wctx, func(tx domain.Stores) error {
		u, err := tx.Users.FindByIDWithRoles(wctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrUserNotFound
		}
		u.IsActive = false
		if err := tx.Users.Update(wctx, u); err != nil {
			return err
		}
		revoked, err = tx.Tokens.RevokeAllForUser(wctx, id, ip)
		return err
	})
	if errors.Is(err, ErrUserNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, s.internal("deactivate user", err)
	}
	s.log.Info("user deactivated", zap.String("user_id", id), zap.Int64("revoked_tokens", revoked), zap.String("ip", ip))
	return revoked, nil
}

func (s *AdminService) RevokeUserTokens(ctx context.Context, id, ip string) (revoked int64, err error) {
	defer func() { observe("revoke_all", err) }()
	st := s.store.Stores()
	u, err := st.Users.FindByIDWithRoles(ctx, id)
	if err != nil {
		return 0, s.internal("find user", err)
	}
	if u == nil {
		return 0, ErrUserNotFound
	}
	revoked, err = st.Tokens.RevokeAllForUser(context.WithoutCancel(ctx), id, ip)
	if err != nil {
		return 0, s.internal("revoke user tokens", err)
	}
	s.log.Info("user tokens revoked", zap.String("user_id", id), zap.Int64("revoked_tokens", revoked), zap.String("ip", ip))
	return revoked, nil
}

func (s *AdminService) internal(op string, err error) error {
	return wrapInternal(s.log, "admin storage failure", op, err)
}
