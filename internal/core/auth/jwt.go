package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/core/config"
)

// RefreshTokenBytes 刷新令牌随机熵（字节）
const RefreshTokenBytes = 64

type Claims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// UID 即 sub
func (c *Claims) UID() string { return c.Subject }

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Subject 签发访问令牌所需的身份信息
type Subject struct {
	ID    string
	Email string
	Name  string
}

type JWTer struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Clock    clock.Clock
}

// NewJWTer 密钥为空直接返回 ErrConfiguration
func NewJWTer(secret, issuer, audience string, ttl time.Duration, clk clock.Clock) (*JWTer, error) {
	j := &JWTer{
		Secret:   []byte(secret),
		Issuer:   issuer,
		Audience: audience,
		TTL:      ttl,
		Clock:    clk,
	}
	if err := j.check(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *JWTer) check() error {
	if len(j.Secret) == 0 {
		return fmt.Errorf("%w: jwt signing secret is not set", config.ErrConfiguration)
	}
	if j.TTL <= 0 {
		return fmt.Errorf("%w: access token ttl must be positive", config.ErrConfiguration)
	}
	return nil
}

func (j *JWTer) now() time.Time {
	if j.Clock == nil {
		return time.Now().UTC()
	}
	return j.Clock.Now()
}

// Issue 签发 HS256 访问令牌，每次带唯一 jti
func (j *JWTer) Issue(s Subject, roles []string) (string, time.Time, error) {
	if err := j.check(); err != nil {
		return "", time.Time{}, err
	}
	now := j.now()
	exp := now.Add(j.TTL)
	claims := Claims{
		Email: s.Email,
		Name:  s.Name,
		Roles: append([]string{}, roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if j.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.Audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(j.Issuer),
		jwt.WithLeeway(60 * time.Second),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.Audience))
	}
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return j.Secret, nil
	}, opts...)

	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateRefreshToken crypto/rand 64 字节，base64 编码
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashToken 确定性 SHA-256（用作查询键）
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func VerifyTokenHash(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}
