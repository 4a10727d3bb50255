package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mosaic/internal/models"
)

// userAgentRepository implements UserAgentRepository using GORM.
type userAgentRepository struct {
	db *gorm.DB
}

// NewUserAgentRepository creates a new UserAgentRepository.
func NewUserAgentRepository(db *gorm.DB) UserAgentRepository {
	return &userAgentRepository{db: db}
}

// Create creates a new user agent.
func (r *userAgentRepository) Create(ctx context.Context, agent *models.UserAgent) error {
	if err := agent.Validate(); err != nil {
		return fmt.Errorf("validating user agent: %w", err)
	}
	return r.db.WithContext(ctx).Create(agent).Error
}

// GetByID retrieves a user agent by ID.
func (r *userAgentRepository) GetByID(ctx context.Context, id models.ULID) (*models.UserAgent, error) {
	var agent models.UserAgent
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetActive retrieves the currently active user agent.
// Returns nil when no user agent is active.
func (r *userAgentRepository) GetActive(ctx context.Context) (*models.UserAgent, error) {
	var agent models.UserAgent
	if err := r.db.WithContext(ctx).First(&agent, "is_active = ?", true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetAll retrieves all user agents.
func (r *userAgentRepository) GetAll(ctx context.Context) ([]*models.UserAgent, error) {
	var agents []*models.UserAgent
	if err := r.db.WithContext(ctx).Order("is_active DESC, name ASC").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

// Update updates an existing user agent.
func (r *userAgentRepository) Update(ctx context.Context, agent *models.UserAgent) error {
	if err := agent.Validate(); err != nil {
		return fmt.Errorf("validating user agent: %w", err)
	}
	return r.db.WithContext(ctx).Save(agent).Error
}

// Delete deletes a user agent by ID.
func (r *userAgentRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.UserAgent{}, "id = ?", id).Error
}

// SetActive marks a user agent as active and deactivates the previous one.
func (r *userAgentRepository) SetActive(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserAgent{}).
			Where("is_active = ?", true).
			UpdateColumn("is_active", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.UserAgent{}).
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

// Ensure userAgentRepository implements UserAgentRepository.
var _ UserAgentRepository = (*userAgentRepository)(nil)
