package repository

import (
	"context"

	"label-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrintRunRepository persists and retrieves run manifests.
type PrintRunRepository interface {
	Create(ctx context.Context, run *models.PrintRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PrintRun, error)
	FindAll(ctx context.Context, page, limit int) ([]models.PrintRun, int64, error)
}

// GormPrintRunRepository implements PrintRunRepository using GORM.
type GormPrintRunRepository struct {
	db *gorm.DB
}

// NewGormPrintRunRepository creates a new GormPrintRunRepository.
func NewGormPrintRunRepository(db *gorm.DB) PrintRunRepository {
	return &GormPrintRunRepository{db: db}
}

func (r *GormPrintRunRepository) Create(ctx context.Context, run *models.PrintRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *GormPrintRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PrintRun, error) {
	var run models.PrintRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *GormPrintRunRepository) FindAll(ctx context.Context, page, limit int) ([]models.PrintRun, int64, error) {
	var runs []models.PrintRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PrintRun{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}
