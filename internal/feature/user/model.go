package user

import (
	"time"

	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/domain"
)

// 时间戳由仓储显式赋值，关闭 gorm 自动时间
type UserModel struct {
	ID            string  `gorm:"primaryKey;type:varchar(32)"`
	Email         string  `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash  string  `gorm:"size:100;not null"`
	FirstName     string  `gorm:"size:64;not null"`
	LastName      string  `gorm:"size:64;not null"`
	Phone         *string `gorm:"size:32"`
	EmailVerified bool    `gorm:"not null;default:false"`
	IsActive      bool    `gorm:"not null"`
	LastLoginAt   *time.Time

	CreatedAt time.Time      `gorm:"autoCreateTime:false;not null"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:false;not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	UserRoles     []UserRoleModel     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	RefreshTokens []RefreshTokenModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string { return "users" }

type RoleModel struct {
	ID          string `gorm:"primaryKey;type:varchar(32)"`
	Name        string `gorm:"uniqueIndex;size:64;not null"`
	Description string `gorm:"size:255"`
}

func (RoleModel) TableName() string { return "roles" }

// UserRoleModel 复合主键保证 (user_id, role_id) 唯一
type UserRoleModel struct {
	UserID    string    `gorm:"primaryKey;type:varchar(32)"`
	RoleID    string    `gorm:"primaryKey;type:varchar(32)"`
	Role      RoleModel `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;not null"`
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RefreshTokenModel struct {
	ID                  string    `gorm:"primaryKey;type:varchar(32)"`
	UserID              string    `gorm:"type:varchar(32);not null;index"`
	TokenHash           string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt           time.Time `gorm:"not null;index"`
	Revoked             bool      `gorm:"not null;default:false;index"`
	RevokedAt           *time.Time
	RevokedByIP         string `gorm:"size:64"`
	ReplacedByTokenHash string `gorm:"size:64;index"`
	CreatedByIP         string `gorm:"size:64"`

	CreatedAt time.Time      `gorm:"autoCreateTime:false;not null"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:false;not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (RefreshTokenModel) TableName() string { return "refresh_tokens" }

// Models AutoMigrate 顺序（被引用的表在前）
func Models() []any {
	return []any{&RoleModel{}, &UserModel{}, &UserRoleModel{}, &RefreshTokenModel{}}
}

func (m *UserModel) ToDomain() *domain.User {
	u := &domain.User{
		ID:            m.ID,
		Email:         m.Email,
		PasswordHash:  m.PasswordHash,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		Phone:         m.Phone,
		EmailVerified: m.EmailVerified,
		IsActive:      m.IsActive,
		LastLoginAt:   m.LastLoginAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, ur := range m.UserRoles {
		if ur.Role.ID == "" {
			continue
		}
		u.Roles = append(u.Roles, *ur.Role.ToDomain())
	}
	return u
}

func FromDomainUser(u *domain.User) *UserModel {
	return &UserModel{
		ID:            u.ID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (m *RoleModel) ToDomain() *domain.Role {
	return &domain.Role{ID: m.ID, Name: m.Name, Description: m.Description}
}

func (m *RefreshTokenModel) ToDomain() *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:                  m.ID,
		UserID:              m.UserID,
		TokenHash:           m.TokenHash,
		ExpiresAt:           m.ExpiresAt,
		Revoked:             m.Revoked,
		RevokedAt:           m.RevokedAt,
		RevokedByIP:         m.RevokedByIP,
		ReplacedByTokenHash: m.ReplacedByTokenHash,
		CreatedByIP:         m.CreatedByIP,
		CreatedAt:           m.CreatedAt,
	}
}

func FromDomainRefreshToken(t *domain.RefreshToken) *RefreshTokenModel {
	return &RefreshTokenModel{
		ID:                  t.ID,
		UserID:              t.UserID,
		TokenHash:           t.TokenHash,
		ExpiresAt:           t.ExpiresAt,
		Revoked:             t.Revoked,
		RevokedAt:           t.RevokedAt,
		RevokedByIP:         t.RevokedByIP,
		ReplacedByTokenHash: t.ReplacedByTokenHash,
		CreatedByIP:         t.CreatedByIP,
		CreatedAt:           t.CreatedAt,
	}
}
