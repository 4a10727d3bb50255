package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mosaic/internal/models"
)

// channelRepository implements ChannelRepository using GORM.
type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

// Create creates a new channel.
func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return fmt.Errorf("validating channel: %w", err)
	}
	return r.db.WithContext(ctx).Create(channel).Error
}

// GetByID retrieves a channel by ID.
func (r *channelRepository) GetByID(ctx context.Context, id models.ULID) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// GetAll retrieves all channels ordered by channel number then name.
func (r *channelRepository) GetAll(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	if err := r.db.WithContext(ctx).Order("channel_number ASC, channel_name ASC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// Update updates an existing channel.
func (r *channelRepository) Update(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return fmt.Errorf("validating channel: %w", err)
	}
	return r.db.WithContext(ctx).Save(channel).Error
}

// Delete deletes a channel by ID.
func (r *channelRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.Channel{}, "id = ?", id).Error
}

// Count returns the total number of channels.
func (r *channelRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Channel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure channelRepository implements ChannelRepository.
var _ ChannelRepository = (*channelRepository)(nil)
