package service

import (
	"time"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/domain"
)

type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(pw, hashed string) bool
}

type TokenIssuer interface {
	Issue(s auth.Subject, roles []string) (string, time.Time, error)
}

type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     *string   `json:"phone,omitempty"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult RefreshToken 为明文，仅此一次可见
type AuthResult struct {
	AccessToken          string      `json:"accessToken"`
	RefreshToken         string      `json:"refreshToken"`
	AccessTokenExpiresAt time.Time   `json:"accessTokenExpiresAt"`
	User                 UserProfile `json:"user"`
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	IP        string
}

func profileOf(u *domain.User) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Roles:     u.RoleNames(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
