package domain

import (
	"context"
	"strings"
	"time"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Phone         *string
	EmailVerified bool
	IsActive      bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Roles         []Role
}

func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Role 启动时种子化的只读参考数据
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NormalizeEmail 邮箱统一小写，所有查询/写入都经过这里
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore 所有实现都必须过滤软删除用户
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDWithRoles(ctx context.Context, id string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	AddRole(ctx context.Context, userID, roleID string) error
	List(ctx context.Context, offset, limit int, q string) ([]User, int64, error)
}

type RoleStore interface {
	FindByName(ctx context.Context, name string) (*Role, error)
}
