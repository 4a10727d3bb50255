// Package service holds the business layer between the HTTP handlers and the
// repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"mosaic/internal/models"
	"mosaic/internal/repository"
)

// CatalogService manages the channel catalog.
type CatalogService struct {
	channels repository.ChannelRepository
	logger   *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(channels repository.ChannelRepository, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		channels: channels,
		logger:   logger.With(slog.String("component", "catalog-service")),
	}
}

// GetAll returns every channel.
func (s *CatalogService) GetAll(ctx context.Context) ([]*models.Channel, error) {
	return s.channels.GetAll(ctx)
}

// GetByID returns one channel.
func (s *CatalogService) GetByID(ctx context.Context, id models.ULID) (*models.Channel, error) {
	channel, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting channel: %w", err)
	}
	if channel == nil {
		return nil, models.ErrChannelNotFound
	}
	return channel, nil
}

// Create validates and stores a channel.
func (s *CatalogService) Create(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	if err := s.channels.Create(ctx, channel); err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	s.logger.Info("channel created",
		slog.String("id", channel.ID.String()),
		slog.String("name", channel.ChannelName),
	)
	return nil
}

// Update validates and stores changes to a channel.
func (s *CatalogService) Update(ctx context.Context, channel *models.Channel) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	existing, err := s.channels.GetByID(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("getting channel: %w", err)
	}
	if existing == nil {
		return models.ErrChannelNotFound
	}
	return s.channels.Update(ctx, channel)
}

// Delete removes a channel.
func (s *CatalogService) Delete(ctx context.Context, id models.ULID) error {
	existing, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("getting channel: %w", err)
	}
	if existing == nil {
		return models.ErrChannelNotFound
	}
	return s.channels.Delete(ctx, id)
}

// Count returns the number of channels.
func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	return s.channels.Count(ctx)
}
