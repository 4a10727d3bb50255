package service

import (
	"context"
	"fmt"
	"log/slog"

	"mosaic/internal/models"
	"mosaic/internal/repository"
)

// SettingsService manages stream profiles and user agents. The active
// profile and active user agent together decide how streams are played.
type SettingsService struct {
	profiles repository.StreamProfileRepository
	agents   repository.UserAgentRepository
	logger   *slog.Logger
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(profiles repository.StreamProfileRepository, agents repository.UserAgentRepository, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{
		profiles: profiles,
		agents:   agents,
		logger:   logger.With(slog.String("component", "settings-service")),
	}
}

// GetAllProfiles returns every stream profile, active first.
func (s *SettingsService) GetAllProfiles(ctx context.Context) ([]*models.StreamProfile, error) {
	return s.profiles.GetAll(ctx)
}

// GetProfileByID returns one stream profile.
func (s *SettingsService) GetProfileByID(ctx context.Context, id models.ULID) (*models.StreamProfile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting stream profile: %w", err)
	}
	if profile == nil {
		return nil, models.ErrStreamProfileNotFound
	}
	return profile, nil
}

// CreateProfile validates and stores a stream profile.
func (s *SettingsService) CreateProfile(ctx context.Context, profile *models.StreamProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return fmt.Errorf("creating stream profile: %w", err)
	}
	s.logger.Info("stream profile created", slog.String("name", profile.Name))
	return nil
}

// UpdateProfile stores changes to a non-system stream profile.
func (s *SettingsService) UpdateProfile(ctx context.Context, profile *models.StreamProfile) error {
	existing, err := s.GetProfileByID(ctx, profile.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRecord
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	return s.profiles.Update(ctx, profile)
}

// DeleteProfile removes a non-system stream profile.
func (s *SettingsService) DeleteProfile(ctx context.Context, id models.ULID) error {
	existing, err := s.GetProfileByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRecord
	}
	return s.profiles.Delete(ctx, id)
}

// ActivateProfile makes the given profile the single active one.
func (s *SettingsService) ActivateProfile(ctx context.Context, id models.ULID) error {
	if err := s.profiles.SetActive(ctx, id); err != nil {
		return fmt.Errorf("activating stream profile: %w", err)
	}
	s.logger.Info("stream profile activated", slog.String("id", id.String()))
	return nil
}

// RecordProfileResult bumps a profile's success or failure counter.
func (s *SettingsService) RecordProfileResult(ctx context.Context, id models.ULID, success bool) error {
	return s.profiles.RecordResult(ctx, id, success)
}

// GetAllUserAgents returns every user agent, active first.
func (s *SettingsService) GetAllUserAgents(ctx context.Context) ([]*models.UserAgent, error) {
	return s.agents.GetAll(ctx)
}

// GetUserAgentByID returns one user agent.
func (s *SettingsService) GetUserAgentByID(ctx context.Context, id models.ULID) (*models.UserAgent, error) {
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user agent: %w", err)
	}
	if agent == nil {
		return nil, models.ErrUserAgentNotFound
	}
	return agent, nil
}

// CreateUserAgent validates and stores a user agent.
func (s *SettingsService) CreateUserAgent(ctx context.Context, agent *models.UserAgent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return fmt.Errorf("creating user agent: %w", err)
	}
	s.logger.Info("user agent created", slog.String("name", agent.Name))
	return nil
}

// UpdateUserAgent stores changes to a non-system user agent.
func (s *SettingsService) UpdateUserAgent(ctx context.Context, agent *models.UserAgent) error {
	existing, err := s.GetUserAgentByID(ctx, agent.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRecord
	}
	if err := agent.Validate(); err != nil {
		return err
	}
	return s.agents.Update(ctx, agent)
}

// DeleteUserAgent removes a non-system user agent.
func (s *SettingsService) DeleteUserAgent(ctx context.Context, id models.ULID) error {
	existing, err := s.GetUserAgentByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRecord
	}
	return s.agents.Delete(ctx, id)
}

// ActivateUserAgent makes the given user agent the single active one.
func (s *SettingsService) ActivateUserAgent(ctx context.Context, id models.ULID) error {
	if err := s.agents.SetActive(ctx, id); err != nil {
		return fmt.Errorf("activating user agent: %w", err)
	}
	s.logger.Info("user agent activated", slog.String("id", id.String()))
	return nil
}
