package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mosaic/internal/models"
)

// streamProfileRepository implements StreamProfileRepository using GORM.
type streamProfileRepository struct {
	db *gorm.DB
}

// NewStreamProfileRepository creates a new StreamProfileRepository.
func NewStreamProfileRepository(db *gorm.DB) StreamProfileRepository {
	return &streamProfileRepository{db: db}
}

// Create creates a new stream profile.
func (r *streamProfileRepository) Create(ctx context.Context, profile *models.StreamProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating stream profile: %w", err)
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID retrieves a stream profile by ID.
func (r *streamProfileRepository) GetByID(ctx context.Context, id models.ULID) (*models.StreamProfile, error) {
	var profile models.StreamProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByName retrieves a stream profile by name.
func (r *streamProfileRepository) GetByName(ctx context.Context, name string) (*models.StreamProfile, error) {
	var profile models.StreamProfile
	if err := r.db.WithContext(ctx).First(&profile, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetActive retrieves the currently active stream profile.
// Returns nil when no profile is active.
func (r *streamProfileRepository) GetActive(ctx context.Context) (*models.StreamProfile, error) {
	var profile models.StreamProfile
	if err := r.db.WithContext(ctx).First(&profile, "is_active = ?", true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetAll retrieves all stream profiles.
func (r *streamProfileRepository) GetAll(ctx context.Context) ([]*models.StreamProfile, error) {
	var profiles []*models.StreamProfile
	if err := r.db.WithContext(ctx).Order("is_active DESC, name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Update updates an existing stream profile.
func (r *streamProfileRepository) Update(ctx context.Context, profile *models.StreamProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating stream profile: %w", err)
	}
	return r.db.WithContext(ctx).Save(profile).Error
}

// Delete deletes a stream profile by ID.
func (r *streamProfileRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.StreamProfile{}, "id = ?", id).Error
}

// SetActive marks a profile as active and deactivates the previous one.
func (r *streamProfileRepository) SetActive(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// UpdateColumn skips hooks so partially populated rows don't fail validation
		if err := tx.Model(&models.StreamProfile{}).
			Where("is_active = ?", true).
			UpdateColumn("is_active", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.StreamProfile{}).
			Where("id = ?", id).
			UpdateColumn("is_active", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// RecordResult increments the success or failure counter for a profile.
func (r *streamProfileRepository) RecordResult(ctx context.Context, id models.ULID, success bool) error {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	return r.db.WithContext(ctx).Model(&models.StreamProfile{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// Ensure streamProfileRepository implements StreamProfileRepository.
var _ StreamProfileRepository = (*streamProfileRepository)(nil)
