package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/domain"
	"atyourdoorstep-auth/internal/feature/user"
	"atyourdoorstep-auth/pkg/utils"
)

type RoleRepo struct{ db *gorm.DB }

func NewRoleRepo(db *gorm.DB) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var m user.RoleModel
	err := r.db.WithContext(ctx).First(&m, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// SeedRoles 幂等：已存在的角色不动
func SeedRoles(ctx context.Context, db *gorm.DB, names []string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			var n int64
			if err := tx.Model(&user.RoleModel{}).Where("name = ?", name).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := tx.Create(&user.RoleModel{ID: utils.NewID(), Name: name, Description: name + " role"}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
