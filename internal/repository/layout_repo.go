package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mosaic/internal/models"
)

// multiviewLayoutRepository implements MultiviewLayoutRepository using GORM.
type multiviewLayoutRepository struct {
	db *gorm.DB
}

// NewMultiviewLayoutRepository creates a new MultiviewLayoutRepository.
func NewMultiviewLayoutRepository(db *gorm.DB) MultiviewLayoutRepository {
	return &multiviewLayoutRepository{db: db}
}

// Create creates a new multiview layout.
func (r *multiviewLayoutRepository) Create(ctx context.Context, layout *models.MultiviewLayout) error {
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("validating layout: %w", err)
	}
	return r.db.WithContext(ctx).Create(layout).Error
}

// GetByID retrieves a layout by ID.
func (r *multiviewLayoutRepository) GetByID(ctx context.Context, id models.ULID) (*models.MultiviewLayout, error) {
	var layout models.MultiviewLayout
	if err := r.db.WithContext(ctx).First(&layout, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &layout, nil
}

// GetByName retrieves a layout by name.
func (r *multiviewLayoutRepository) GetByName(ctx context.Context, name string) (*models.MultiviewLayout, error) {
	var layout models.MultiviewLayout
	if err := r.db.WithContext(ctx).First(&layout, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &layout, nil
}

// GetAll retrieves all layouts ordered by name.
func (r *multiviewLayoutRepository) GetAll(ctx context.Context) ([]*models.MultiviewLayout, error) {
	var layouts []*models.MultiviewLayout
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&layouts).Error; err != nil {
		return nil, err
	}
	return layouts, nil
}

// Delete deletes a layout by ID.
func (r *multiviewLayoutRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.MultiviewLayout{}, "id = ?", id).Error
}

// Ensure multiviewLayoutRepository implements MultiviewLayoutRepository.
var _ MultiviewLayoutRepository = (*multiviewLayoutRepository)(nil)
