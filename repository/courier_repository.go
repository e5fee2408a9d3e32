package repository

import (
	"context"

	"label-service/models"

	"gorm.io/gorm"
)

// CourierRepository resolves courier integration config.
type CourierRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Courier, error)
}

// GormCourierRepository implements CourierRepository using GORM.
type GormCourierRepository struct {
	db *gorm.DB
}

// NewGormCourierRepository creates a new GormCourierRepository.
func NewGormCourierRepository(db *gorm.DB) CourierRepository {
	return &GormCourierRepository{db: db}
}

func (r *GormCourierRepository) FindByCode(ctx context.Context, code string) (*models.Courier, error) {
	var c models.Courier
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
