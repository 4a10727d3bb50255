// Package repository provides data access implementations.
package repository

import (
	"context"

	"mosaic/internal/models"
)

// ChannelRepository defines data access for channels.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id models.ULID) (*models.Channel, error)
	GetAll(ctx context.Context) ([]*models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id models.ULID) error
	Count(ctx context.Context) (int64, error)
}

// StreamProfileRepository defines data access for stream profiles.
type StreamProfileRepository interface {
	Create(ctx context.Context, profile *models.StreamProfile) error
	GetByID(ctx context.Context, id models.ULID) (*models.StreamProfile, error)
	GetByName(ctx context.Context, name string) (*models.StreamProfile, error)
	GetActive(ctx context.Context) (*models.StreamProfile, error)
	GetAll(ctx context.Context) ([]*models.StreamProfile, error)
	Update(ctx context.Context, profile *models.StreamProfile) error
	Delete(ctx context.Context, id models.ULID) error
	SetActive(ctx context.Context, id models.ULID) error
	RecordResult(ctx context.Context, id models.ULID, success bool) error
}

// UserAgentRepository defines data access for user agents.
type UserAgentRepository interface {
	Create(ctx context.Context, agent *models.UserAgent) error
	GetByID(ctx context.Context, id models.ULID) (*models.UserAgent, error)
	GetActive(ctx context.Context) (*models.UserAgent, error)
	GetAll(ctx context.Context) ([]*models.UserAgent, error)
	Update(ctx context.Context, agent *models.UserAgent) error
	Delete(ctx context.Context, id models.ULID) error
	SetActive(ctx context.Context, id models.ULID) error
}

// MultiviewLayoutRepository defines data access for saved multiview layouts.
type MultiviewLayoutRepository interface {
	Create(ctx context.Context, layout *models.MultiviewLayout) error
	GetByID(ctx context.Context, id models.ULID) (*models.MultiviewLayout, error)
	GetByName(ctx context.Context, name string) (*models.MultiviewLayout, error)
	GetAll(ctx context.Context) ([]*models.MultiviewLayout, error)
	Delete(ctx context.Context, id models.ULID) error
}
