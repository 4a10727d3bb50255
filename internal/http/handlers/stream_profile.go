package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"mosaic/internal/models"
	"mosaic/internal/service"
)

// StreamProfileHandler handles stream profile API endpoints.
type StreamProfileHandler struct {
	settings *service.SettingsService
}

// NewStreamProfileHandler creates a stream profile handler.
func NewStreamProfileHandler(settings *service.SettingsService) *StreamProfileHandler {
	return &StreamProfileHandler{settings: settings}
}

// Register registers the stream profile routes with the API.
func (h *StreamProfileHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listStreamProfiles",
		Method:      "GET",
		Path:        "/api/v1/stream-profiles",
		Summary:     "List stream profiles",
		Description: "Returns all stream profiles, active first",
		Tags:        []string{"Stream Profiles"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getStreamProfile",
		Method:      "GET",
		Path:        "/api/v1/stream-profiles/{id}",
		Summary:     "Get stream profile",
		Tags:        []string{"Stream Profiles"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createStreamProfile",
		Method:      "POST",
		Path:        "/api/v1/stream-profiles",
		Summary:     "Create stream profile",
		Tags:        []string{"Stream Profiles"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateStreamProfile",
		Method:      "PUT",
		Path:        "/api/v1/stream-profiles/{id}",
		Summary:     "Update stream profile",
		Description: "System profiles cannot be modified",
		Tags:        []string{"Stream Profiles"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteStreamProfile",
		Method:      "DELETE",
		Path:        "/api/v1/stream-profiles/{id}",
		Summary:     "Delete stream profile",
		Description: "System profiles cannot be deleted",
		Tags:        []string{"Stream Profiles"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "activateStreamProfile",
		Method:      "POST",
		Path:        "/api/v1/stream-profiles/{id}/activate",
		Summary:     "Activate stream profile",
		Description: "Makes this profile the single active one",
		Tags:        []string{"Stream Profiles"},
	}, h.Activate)
}

// StreamProfileResponse represents a stream profile in API responses.
type StreamProfileResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	IsActive        bool   `json:"is_active"`
	IsSystem        bool   `json:"is_system"`
	Passthrough     bool   `json:"passthrough"`
	CommandTemplate string `json:"command_template,omitempty"`
	SuccessCount    int64  `json:"success_count"`
	FailureCount    int64  `json:"failure_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// StreamProfileFromModel converts a model to a response.
func StreamProfileFromModel(p *models.StreamProfile) StreamProfileResponse {
	return StreamProfileResponse{
		ID:              p.ID.String(),
		Name:            p.Name,
		Description:     p.Description,
		IsActive:        p.IsActive,
		IsSystem:        p.IsSystem,
		Passthrough:     p.Passthrough,
		CommandTemplate: p.CommandTemplate,
		SuccessCount:    p.SuccessCount,
		FailureCount:    p.FailureCount,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}

// ListStreamProfilesOutput is the output for listing stream profiles.
type ListStreamProfilesOutput struct {
	Body struct {
		Profiles []StreamProfileResponse `json:"profiles"`
	}
}

// List returns all stream profiles.
func (h *StreamProfileHandler) List(ctx context.Context, _ *struct{}) (*ListStreamProfilesOutput, error) {
	profiles, err := h.settings.GetAllProfiles(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list stream profiles", err)
	}

	resp := &ListStreamProfilesOutput{}
	resp.Body.Profiles = make([]StreamProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		resp.Body.Profiles = append(resp.Body.Profiles, StreamProfileFromModel(p))
	}
	return resp, nil
}

// GetStreamProfileInput is the input for getting a stream profile.
type GetStreamProfileInput struct {
	ID string `path:"id" doc:"Stream profile ID (ULID)"`
}

// GetStreamProfileOutput is the output for getting a stream profile.
type GetStreamProfileOutput struct {
	Body StreamProfileResponse
}

// GetByID returns a stream profile by ID.
func (h *StreamProfileHandler) GetByID(ctx context.Context, input *GetStreamProfileInput) (*GetStreamProfileOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	profile, err := h.settings.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrStreamProfileNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("stream profile %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get stream profile", err)
	}
	return &GetStreamProfileOutput{Body: StreamProfileFromModel(profile)}, nil
}

// CreateStreamProfileInput is the input for creating a stream profile.
type CreateStreamProfileInput struct {
	Body struct {
		Name            string `json:"name" required:"true" doc:"Unique profile name"`
		Description     string `json:"description,omitempty"`
		Passthrough     bool   `json:"passthrough,omitempty" doc:"Play the upstream URL directly"`
		CommandTemplate string `json:"command_template,omitempty" doc:"Child process command line with {streamUrl} and optional {userAgent}"`
	}
}

// CreateStreamProfileOutput is the output for creating a stream profile.
type CreateStreamProfileOutput struct {
	Body StreamProfileResponse
}

// Create creates a stream profile.
func (h *StreamProfileHandler) Create(ctx context.Context, input *CreateStreamProfileInput) (*CreateStreamProfileOutput, error) {
	profile := &models.StreamProfile{
		Name:            input.Body.Name,
		Description:     input.Body.Description,
		Passthrough:     input.Body.Passthrough,
		CommandTemplate: input.Body.CommandTemplate,
	}

	if err := h.settings.CreateProfile(ctx, profile); err != nil {
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create stream profile", err)
	}
	return &CreateStreamProfileOutput{Body: StreamProfileFromModel(profile)}, nil
}

// UpdateStreamProfileInput is the input for updating a stream profile.
type UpdateStreamProfileInput struct {
	ID   string `path:"id" doc:"Stream profile ID (ULID)"`
	Body struct {
		Name            string  `json:"name,omitempty"`
		Description     *string `json:"description,omitempty"`
		Passthrough     *bool   `json:"passthrough,omitempty"`
		CommandTemplate *string `json:"command_template,omitempty"`
	}
}

// UpdateStreamProfileOutput is the output for updating a stream profile.
type UpdateStreamProfileOutput struct {
	Body StreamProfileResponse
}

// Update updates a non-system stream profile.
func (h *StreamProfileHandler) Update(ctx context.Context, input *UpdateStreamProfileInput) (*UpdateStreamProfileOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	profile, err := h.settings.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrStreamProfileNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("stream profile %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get stream profile", err)
	}

	if input.Body.Name != "" {
		profile.Name = input.Body.Name
	}
	if input.Body.Description != nil {
		profile.Description = *input.Body.Description
	}
	if input.Body.Passthrough != nil {
		profile.Passthrough = *input.Body.Passthrough
	}
	if input.Body.CommandTemplate != nil {
		profile.CommandTemplate = *input.Body.CommandTemplate
	}

	if err := h.settings.UpdateProfile(ctx, profile); err != nil {
		if errors.Is(err, service.ErrSystemRecord) {
			return nil, huma.Error403Forbidden("system stream profiles cannot be modified")
		}
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to update stream profile", err)
	}
	return &UpdateStreamProfileOutput{Body: StreamProfileFromModel(profile)}, nil
}

// DeleteStreamProfileInput is the input for deleting a stream profile.
type DeleteStreamProfileInput struct {
	ID string `path:"id" doc:"Stream profile ID (ULID)"`
}

// Delete deletes a non-system stream profile.
func (h *StreamProfileHandler) Delete(ctx context.Context, input *DeleteStreamProfileInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.settings.DeleteProfile(ctx, id); err != nil {
		if errors.Is(err, models.ErrStreamProfileNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("stream profile %s not found", input.ID))
		}
		if errors.Is(err, service.ErrSystemRecord) {
			return nil, huma.Error403Forbidden("system stream profiles cannot be deleted")
		}
		return nil, huma.Error500InternalServerError("failed to delete stream profile", err)
	}
	return &struct{}{}, nil
}

// ActivateStreamProfileInput is the input for activating a stream profile.
type ActivateStreamProfileInput struct {
	ID string `path:"id" doc:"Stream profile ID (ULID)"`
}

// ActivateStreamProfileOutput is the output for activating a stream profile.
type ActivateStreamProfileOutput struct {
	Body StreamProfileResponse
}

// Activate makes the given profile the single active one.
func (h *StreamProfileHandler) Activate(ctx context.Context, input *ActivateStreamProfileInput) (*ActivateStreamProfileOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if _, err := h.settings.GetProfileByID(ctx, id); err != nil {
		if errors.Is(err, models.ErrStreamProfileNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("stream profile %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get stream profile", err)
	}

	if err := h.settings.ActivateProfile(ctx, id); err != nil {
		return nil, huma.Error500InternalServerError("failed to activate stream profile", err)
	}

	profile, err := h.settings.GetProfileByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get stream profile", err)
	}
	return &ActivateStreamProfileOutput{Body: StreamProfileFromModel(profile)}, nil
}
