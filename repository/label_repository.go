package repository

import (
	"context"

	"label-service/models"

	"gorm.io/gorm"
)

// LabelRepository resolves per-order label sources for a run.
type LabelRepository interface {
	// FindSources returns one LabelSource per label row matching the
	// courier and order IDs. Orders without a row are simply absent.
	FindSources(ctx context.Context, courierCode string, orderIDs []string) ([]models.LabelSource, error)
}

// GormLabelRepository implements LabelRepository using GORM.
type GormLabelRepository struct {
	db *gorm.DB
}

// NewGormLabelRepository creates a new GormLabelRepository.
func NewGormLabelRepository(db *gorm.DB) LabelRepository {
	return &GormLabelRepository{db: db}
}

func (r *GormLabelRepository) FindSources(ctx context.Context, courierCode string, orderIDs []string) ([]models.LabelSource, error) {
	var labels []models.Label
	if err := r.db.WithContext(ctx).
		Where("courier_code = ? AND order_id IN ?", courierCode, orderIDs).
		Find(&labels).Error; err != nil {
		return nil, err
	}

	sources := make([]models.LabelSource, 0, len(labels))
	for _, l := range labels {
		sources = append(sources, models.LabelSource{
			OrderID:      l.OrderID,
			TrackingCode: l.TrackingCode,
			CachedPath:   l.CachedPath,
		})
	}
	return sources, nil
}
