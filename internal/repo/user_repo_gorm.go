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

// UserRepo 软删除过滤由 gorm.DeletedAt 统一施加
type UserRepo struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewUserRepo(db *gorm.DB, clk clock.Clock) *UserRepo { return &UserRepo{db: db, clock: clk} }

func (r *UserRepo) withRoles(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("UserRoles.Role")
}

func (r *UserRepo) first(q *gorm.DB, query string, arg any) (*domain.User, error) {
	var m user.UserModel
	err := q.First(&m, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(r.withRoles(ctx), "email = ?", domain.NormalizeEmail(email))
}

func (r *UserRepo) FindByIDWithRoles(ctx context.Context, id string) (*domain.User, error) {
	return r.first(r.withRoles(ctx), "id = ?", id)
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&user.UserModel{}).
		Where("email = ?", domain.NormalizeEmail(email)).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepo) Add(ctx context.Context, u *domain.User) error {
	now := r.clock.Now()
	u.Email = domain.NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	if err := r.db.WithContext(ctx).Create(user.FromDomainUser(u)).Error; err != nil {
		if isDupKey(err) {
			return domain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	u.UpdatedAt = r.clock.Now()
	res := r.db.WithContext(ctx).Model(&user.UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":          u.Email,
		"password_hash":  u.PasswordHash,
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"phone":          u.Phone,
		"email_verified": u.EmailVerified,
		"is_active":      u.IsActive,
		"last_login_at":  u.LastLoginAt,
		"updated_at":     u.UpdatedAt,
	})
	if res.Error != nil {
		if isDupKey(res.Error) {
			return domain.ErrEmailTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepo) AddRole(ctx context.Context, userID, roleID string) error {
	return r.db.WithContext(ctx).Create(&user.UserRoleModel{
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: r.clock.Now(),
	}).Error
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern q 中的 % 和 _ 按字面匹配；转义符用 '!'，三种方言写法一致
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

func (r *UserRepo) List(ctx context.Context, offset, limit int, q string) ([]domain.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&user.UserModel{})
	if s := strings.TrimSpace(q); s != "" {
		like := containsPattern(strings.ToLower(s))
		tx = tx.Where("email LIKE ? ESCAPE '!' OR LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!'", like, like, like)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ms []user.UserModel
	if err := tx.Preload("UserRoles.Role").Offset(offset).Limit(limit).Order("created_at desc").Find(&ms).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.User, 0, len(ms))
	for i := range ms {
		out = append(out, *ms[i].ToDomain())
	}
	return out, total, nil
}
