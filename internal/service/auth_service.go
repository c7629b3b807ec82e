package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/core/events"
	"atyourdoorstep-auth/internal/domain"
	"atyourdoorstep-auth/pkg/utils"
)

type AuthOptions struct {
	RefreshTTL  time.Duration
	DefaultRole string
	// RequireDefaultRole 默认角色缺失时注册失败（否则无角色注册并告警）
	RequireDefaultRole bool
}

type AuthService struct {
	store  domain.Transactor
	hasher PasswordHasher
	tokens TokenIssuer
	clock  clock.Clock
	events events.Publisher
	log    *zap.Logger
	opts   AuthOptions

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	store domain.Transactor,
	hasher PasswordHasher,
	tokens TokenIssuer,
	clk clock.Clock,
	pub events.Publisher,
	l *zap.Logger,
	opts AuthOptions,
) *AuthService {
	if pub == nil {
		pub = events.Nop{}
	}
	if l == nil {
		l = zap.NewNop()
	}
	if opts.DefaultRole == "" {
		opts.DefaultRole = "User"
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		clock:  clk,
		events: pub,
		log:    l,
		opts:   opts,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer func() { observe("register", err) }()

	if len(in.Password) > MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, MaxPasswordBytes)
	}
	email := domain.NormalizeEmail(in.Email)
	st := s.store.Stores()

	exists, err := st.Users.EmailExists(ctx, email)
	if err != nil {
		return nil, s.internal("check email", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	role, err := st.Roles.FindByName(ctx, s.opts.DefaultRole)
	if err != nil {
		return nil, s.internal("load default role", err)
	}
	if role == nil {
		if s.opts.RequireDefaultRole {
			return nil, fmt.Errorf("%w: default role %q is not seeded", ErrConfiguration, s.opts.DefaultRole)
		}
		s.log.Warn("default role missing, registering without role", zap.String("role", s.opts.DefaultRole))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		IsActive:     true,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx := context.WithoutCancel(ctx)
	err = s.store.InTx(wctx, func(tx domain.Stores) error {
		if err := tx.Users.Add(wctx, u); err != nil {
			return err
		}
		if role != nil {
			if err := tx.Users.AddRole(wctx, u.ID, role.ID); err != nil {
				return err
			}
			u.Roles = []domain.Role{*role}
		}
		r, err := s.issue(wctx, tx, u, in.IP)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		return nil, ErrDuplicateEmail
	case errors.Is(err, ErrConfiguration):
		return nil, err
	case err != nil:
		return nil, s.internal("register", err)
	}

	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("ip", in.IP))
	s.publishRegistered(wctx, u)
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, email, password, ip string) (res *AuthResult, err error) {
	defer func() { observe("login", err) }()

	u, err := s.store.Stores().Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("find user", err)
	}
	if u == nil {
		// 未知邮箱也做一次哈希校验，响应时间与密码错误一致
		s.hasher.Verify(password, s.dummy())
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx := context.WithoutCancel(ctx)
	now := s.clock.Now()
	err = s.store.InTx(wctx, func(tx domain.Stores) error {
		u.LastLoginAt = &now
		if err := tx.Users.Update(wctx, u); err != nil {
			return err
		}
		r, err := s.issue(wctx, tx, u, ip)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	switch {
	case errors.Is(err, ErrConfiguration):
		return nil, err
	case err != nil:
		return nil, s.internal("login", err)
	}

	s.log.Info("user logged in", zap.String("user_id", u.ID), zap.String("ip", ip))
	return res, nil
}

// Refresh 撤销旧令牌、签发新令牌、回写替换链，三步同一事务
func (s *AuthService) Refresh(ctx context.Context, presented, ip string) (res *AuthResult, err error) {
	defer func() { observe("refresh", err) }()

	if strings.TrimSpace(presented) == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	hash := auth.HashToken(presented)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx := context.WithoutCancel(ctx)
	var (
		userID   string
		userGone bool
	)
	err = s.store.InTx(wctx, func(tx domain.Stores) error {
		old, err := tx.Tokens.FindValidByHash(wctx, hash)
		if err != nil {
			return err
		}
		if old == nil {
			return ErrInvalidOrExpiredToken
		}
		old.RevokedByIP = ip
		won, err := tx.Tokens.MarkRevoked(wctx, old)
		if err != nil {
			return err
		}
		if !won {
			return ErrInvalidOrExpiredToken
		}

		u, err := tx.Users.FindByIDWithRoles(wctx, old.UserID)
		if err != nil {
			return err
		}
		if u == nil || !u.IsActive {
			// 撤销照常提交，对外与坏令牌同一信号
			userGone = true
			return nil
		}

		r, err := s.issue(wctx, tx, u, ip)
		if err != nil {
			return err
		}
		old.ReplacedByTokenHash = auth.HashToken(r.RefreshToken)
		if err := tx.Tokens.Update(wctx, old); err != nil {
			return err
		}
		userID = u.ID
		res = r
		return nil
	})
	switch {
	case errors.Is(err, ErrInvalidOrExpiredToken), errors.Is(err, ErrConfiguration):
		return nil, err
	case err != nil:
		return nil, s.internal("refresh", err)
	case userGone:
		return nil, ErrInvalidOrExpiredToken
	}

	s.log.Info("refresh token rotated", zap.String("user_id", userID), zap.String("ip", ip))
	return res, nil
}

// Revoke 未知/已失效令牌返回 false，不报错
func (s *AuthService) Revoke(ctx context.Context, presented, ip string) (revoked bool, err error) {
	defer func() {
		if err == nil && !revoked {
			observe("revoke", ErrInvalidOrExpiredToken)
			return
		}
		observe("revoke", err)
	}()

	if strings.TrimSpace(presented) == "" {
		return false, nil
	}
	hash := auth.HashToken(presented)

	if err := ctx.Err(); err != nil {
		return false, err
	}
	wctx := context.WithoutCancel(ctx)
	var userID string
	err = s.store.InTx(wctx, func(tx domain.Stores) error {
		t, err := tx.Tokens.FindValidByHash(wctx, hash)
		if err != nil || t == nil {
			return err
		}
		t.RevokedByIP = ip
		won, err := tx.Tokens.MarkRevoked(wctx, t)
		if err != nil {
			return err
		}
		revoked, userID = won, t.UserID
		return nil
	})
	if err != nil {
		return false, s.internal("revoke", err)
	}
	if revoked {
		s.log.Info("refresh token revoked", zap.String("user_id", userID), zap.String("ip", ip))
	}
	return revoked, nil
}

// GetUserByID 只读；不存在返回 (nil, nil)
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*UserProfile, error) {
	u, err := s.store.Stores().Users.FindByIDWithRoles(ctx, id)
	if err != nil {
		return nil, s.internal("get user", err)
	}
	if u == nil {
		return nil, nil
	}
	p := profileOf(u)
	return &p, nil
}

func (s *AuthService) issue(ctx context.Context, st domain.Stores, u *domain.User, ip string) (*AuthResult, error) {
	access, exp, err := s.tokens.Issue(auth.Subject{ID: u.ID, Email: u.Email, Name: u.DisplayName()}, u.RoleNames())
	if err != nil {
		return nil, err
	}
	plain, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	rt := &domain.RefreshToken{
		ID:          utils.NewID(),
		UserID:      u.ID,
		Token:       plain,
		TokenHash:   auth.HashToken(plain),
		ExpiresAt:   s.clock.Now().Add(s.opts.RefreshTTL),
		CreatedByIP: ip,
	}
	if err := st.Tokens.Add(ctx, rt); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:          access,
		RefreshToken:         plain,
		AccessTokenExpiresAt: exp,
		User:                 profileOf(u),
	}, nil
}

func (s *AuthService) publishRegistered(ctx context.Context, u *domain.User) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := s.events.PublishUserRegistered(ctx, events.UserRegistered{
		UserID:       u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		RegisteredAt: u.CreatedAt,
	})
	if err != nil {
		s.log.Warn("publish user.registered failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("timing-equalizer")
	})
	return s.dummyHash
}

func (s *AuthService) internal(op string, err error) error {
	return wrapInternal(s.log, "auth storage failure", op, err)
}
