package service

import (
	"context"
	"fmt"
	"log/slog"

	"mosaic/internal/models"
	"mosaic/internal/repository"
)

// LayoutService manages named multiview layouts. A layout stores geometry
// and channel references only; stream and playback handles are re-derived
// when a layout is applied.
type LayoutService struct {
	layouts repository.MultiviewLayoutRepository
	logger  *slog.Logger
}

// NewLayoutService creates a LayoutService.
func NewLayoutService(layouts repository.MultiviewLayoutRepository, logger *slog.Logger) *LayoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayoutService{
		layouts: layouts,
		logger:  logger.With(slog.String("component", "layout-service")),
	}
}

// List returns every saved layout.
func (s *LayoutService) List(ctx context.Context) ([]*models.MultiviewLayout, error) {
	return s.layouts.GetAll(ctx)
}

// GetByID returns one layout.
func (s *LayoutService) GetByID(ctx context.Context, id models.ULID) (*models.MultiviewLayout, error) {
	layout, err := s.layouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting layout: %w", err)
	}
	if layout == nil {
		return nil, models.ErrLayoutNotFound
	}
	return layout, nil
}

// Create validates and stores a layout. Names are unique.
func (s *LayoutService) Create(ctx context.Context, layout *models.MultiviewLayout) error {
	if err := layout.Validate(); err != nil {
		return err
	}

	existing, err := s.layouts.GetByName(ctx, layout.Name)
	if err != nil {
		return fmt.Errorf("checking layout name: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrLayoutNameTaken, layout.Name)
	}

	if err := s.layouts.Create(ctx, layout); err != nil {
		return fmt.Errorf("creating layout: %w", err)
	}
	s.logger.Info("layout saved",
		slog.String("name", layout.Name),
		slog.Int("slots", len(layout.Slots)),
	)
	return nil
}

// Delete removes a layout.
func (s *LayoutService) Delete(ctx context.Context, id models.ULID) error {
	existing, err := s.layouts.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("getting layout: %w", err)
	}
	if existing == nil {
		return models.ErrLayoutNotFound
	}
	if err := s.layouts.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting layout: %w", err)
	}
	s.logger.Info("layout deleted", slog.String("name", existing.Name))
	return nil
}
