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

// UserAgentHandler handles user agent API endpoints.
type UserAgentHandler struct {
	settings *service.SettingsService
}

// NewUserAgentHandler creates a user agent handler.
func NewUserAgentHandler(settings *service.SettingsService) *UserAgentHandler {
	return &UserAgentHandler{settings: settings}
}

// Register registers the user agent routes with the API.
func (h *UserAgentHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listUserAgents",
		Method:      "GET",
		Path:        "/api/v1/user-agents",
		Summary:     "List user agents",
		Description: "Returns all user agents, active first",
		Tags:        []string{"User Agents"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getUserAgent",
		Method:      "GET",
		Path:        "/api/v1/user-agents/{id}",
		Summary:     "Get user agent",
		Tags:        []string{"User Agents"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createUserAgent",
		Method:      "POST",
		Path:        "/api/v1/user-agents",
		Summary:     "Create user agent",
		Tags:        []string{"User Agents"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateUserAgent",
		Method:      "PUT",
		Path:        "/api/v1/user-agents/{id}",
		Summary:     "Update user agent",
		Description: "System user agents cannot be modified",
		Tags:        []string{"User Agents"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteUserAgent",
		Method:      "DELETE",
		Path:        "/api/v1/user-agents/{id}",
		Summary:     "Delete user agent",
		Description: "System user agents cannot be deleted",
		Tags:        []string{"User Agents"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "activateUserAgent",
		Method:      "POST",
		Path:        "/api/v1/user-agents/{id}/activate",
		Summary:     "Activate user agent",
		Description: "Makes this user agent the single active one",
		Tags:        []string{"User Agents"},
	}, h.Activate)
}

// UserAgentResponse represents a user agent in API responses.
type UserAgentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	IsActive  bool   `json:"is_active"`
	IsSystem  bool   `json:"is_system"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// UserAgentFromModel converts a model to a response.
func UserAgentFromModel(u *models.UserAgent) UserAgentResponse {
	return UserAgentResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Value:     u.Value,
		IsActive:  u.IsActive,
		IsSystem:  u.IsSystem,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// ListUserAgentsOutput is the output for listing user agents.
type ListUserAgentsOutput struct {
	Body struct {
		UserAgents []UserAgentResponse `json:"user_agents"`
	}
}

// List returns all user agents.
func (h *UserAgentHandler) List(ctx context.Context, _ *struct{}) (*ListUserAgentsOutput, error) {
	agents, err := h.settings.GetAllUserAgents(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list user agents", err)
	}

	resp := &ListUserAgentsOutput{}
	resp.Body.UserAgents = make([]UserAgentResponse, 0, len(agents))
	for _, u := range agents {
		resp.Body.UserAgents = append(resp.Body.UserAgents, UserAgentFromModel(u))
	}
	return resp, nil
}

// GetUserAgentInput is the input for getting a user agent.
type GetUserAgentInput struct {
	ID string `path:"id" doc:"User agent ID (ULID)"`
}

// GetUserAgentOutput is the output for getting a user agent.
type GetUserAgentOutput struct {
	Body UserAgentResponse
}

// GetByID returns a user agent by ID.
func (h *UserAgentHandler) GetByID(ctx context.Context, input *GetUserAgentInput) (*GetUserAgentOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	agent, err := h.settings.GetUserAgentByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrUserAgentNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("user agent %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get user agent", err)
	}
	return &GetUserAgentOutput{Body: UserAgentFromModel(agent)}, nil
}

// CreateUserAgentInput is the input for creating a user agent.
type CreateUserAgentInput struct {
	Body struct {
		Name  string `json:"name" required:"true" doc:"Unique user agent name"`
		Value string `json:"value" required:"true" doc:"User-Agent header value"`
	}
}

// CreateUserAgentOutput is the output for creating a user agent.
type CreateUserAgentOutput struct {
	Body UserAgentResponse
}

// Create creates a user agent.
func (h *UserAgentHandler) Create(ctx context.Context, input *CreateUserAgentInput) (*CreateUserAgentOutput, error) {
	agent := &models.UserAgent{
		Name:  input.Body.Name,
		Value: input.Body.Value,
	}

	if err := h.settings.CreateUserAgent(ctx, agent); err != nil {
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create user agent", err)
	}
	return &CreateUserAgentOutput{Body: UserAgentFromModel(agent)}, nil
}

// UpdateUserAgentInput is the input for updating a user agent.
type UpdateUserAgentInput struct {
	ID   string `path:"id" doc:"User agent ID (ULID)"`
	Body struct {
		Name  string `json:"name,omitempty"`
		Value string `json:"value,omitempty"`
	}
}

// UpdateUserAgentOutput is the output for updating a user agent.
type UpdateUserAgentOutput struct {
	Body UserAgentResponse
}

// Update updates a non-system user agent.
func (h *UserAgentHandler) Update(ctx context.Context, input *UpdateUserAgentInput) (*UpdateUserAgentOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	agent, err := h.settings.GetUserAgentByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrUserAgentNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("user agent %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get user agent", err)
	}

	if input.Body.Name != "" {
		agent.Name = input.Body.Name
	}
	if input.Body.Value != "" {
		agent.Value = input.Body.Value
	}

	if err := h.settings.UpdateUserAgent(ctx, agent); err != nil {
		if errors.Is(err, service.ErrSystemRecord) {
			return nil, huma.Error403Forbidden("system user agents cannot be modified")
		}
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to update user agent", err)
	}
	return &UpdateUserAgentOutput{Body: UserAgentFromModel(agent)}, nil
}

// DeleteUserAgentInput is the input for deleting a user agent.
type DeleteUserAgentInput struct {
	ID string `path:"id" doc:"User agent ID (ULID)"`
}

// Delete deletes a non-system user agent.
func (h *UserAgentHandler) Delete(ctx context.Context, input *DeleteUserAgentInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.settings.DeleteUserAgent(ctx, id); err != nil {
		if errors.Is(err, models.ErrUserAgentNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("user agent %s not found", input.ID))
		}
		if errors.Is(err, service.ErrSystemRecord) {
			return nil, huma.Error403Forbidden("system user agents cannot be deleted")
		}
		return nil, huma.Error500InternalServerError("failed to delete user agent", err)
	}
	return &struct{}{}, nil
}

// ActivateUserAgentInput is the input for activating a user agent.
type ActivateUserAgentInput struct {
	ID string `path:"id" doc:"User agent ID (ULID)"`
}

// ActivateUserAgentOutput is the output for activating a user agent.
type ActivateUserAgentOutput struct {
	Body UserAgentResponse
}

// Activate makes the given user agent the single active one.
func (h *UserAgentHandler) Activate(ctx context.Context, input *ActivateUserAgentInput) (*ActivateUserAgentOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if _, err := h.settings.GetUserAgentByID(ctx, id); err != nil {
		if errors.Is(err, models.ErrUserAgentNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("user agent %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get user agent", err)
	}

	if err := h.settings.ActivateUserAgent(ctx, id); err != nil {
		return nil, huma.Error500InternalServerError("failed to activate user agent", err)
	}

	agent, err := h.settings.GetUserAgentByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get user agent", err)
	}
	return &ActivateUserAgentOutput{Body: UserAgentFromModel(agent)}, nil
}
