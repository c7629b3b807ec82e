package utils

import "golang.org/x/crypto/bcrypt"

// BcryptHasher 加盐单向哈希，Cost 可配置（<=0 用 bcrypt.DefaultCost）
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher { return &BcryptHasher{Cost: cost} }

func (h *BcryptHasher) Hash(pw string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify 任何不匹配或格式错误的哈希都返回 false
func (h *BcryptHasher) Verify(pw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
