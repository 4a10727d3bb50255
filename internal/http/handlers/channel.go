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

// ChannelHandler handles channel catalog API endpoints.
type ChannelHandler struct {
	catalog *service.CatalogService
}

// NewChannelHandler creates a channel handler.
func NewChannelHandler(catalog *service.CatalogService) *ChannelHandler {
	return &ChannelHandler{catalog: catalog}
}

// Register registers the channel routes with the API.
func (h *ChannelHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/api/v1/channels",
		Summary:     "List channels",
		Description: "Returns all channels in the catalog",
		Tags:        []string{"Channels"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getChannel",
		Method:      "GET",
		Path:        "/api/v1/channels/{id}",
		Summary:     "Get channel",
		Tags:        []string{"Channels"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createChannel",
		Method:      "POST",
		Path:        "/api/v1/channels",
		Summary:     "Create channel",
		Tags:        []string{"Channels"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateChannel",
		Method:      "PUT",
		Path:        "/api/v1/channels/{id}",
		Summary:     "Update channel",
		Tags:        []string{"Channels"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteChannel",
		Method:      "DELETE",
		Path:        "/api/v1/channels/{id}",
		Summary:     "Delete channel",
		Tags:        []string{"Channels"},
	}, h.Delete)
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID            string `json:"id"`
	ChannelName   string `json:"channel_name"`
	ChannelNumber int    `json:"channel_number,omitempty"`
	StreamURL     string `json:"stream_url"`
	LogoURL       string `json:"logo_url,omitempty"`
	GroupTitle    string `json:"group_title,omitempty"`
	Language      string `json:"language,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ChannelFromModel converts a model to a response.
func ChannelFromModel(c *models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:            c.ID.String(),
		ChannelName:   c.ChannelName,
		ChannelNumber: c.ChannelNumber,
		StreamURL:     c.StreamURL,
		LogoURL:       c.LogoURL,
		GroupTitle:    c.GroupTitle,
		Language:      c.Language,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

// ListChannelsOutput is the output for listing channels.
type ListChannelsOutput struct {
	Body struct {
		Channels []ChannelResponse `json:"channels"`
	}
}

// List returns all channels.
func (h *ChannelHandler) List(ctx context.Context, _ *struct{}) (*ListChannelsOutput, error) {
	channels, err := h.catalog.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list channels", err)
	}

	resp := &ListChannelsOutput{}
	resp.Body.Channels = make([]ChannelResponse, 0, len(channels))
	for _, c := range channels {
		resp.Body.Channels = append(resp.Body.Channels, ChannelFromModel(c))
	}
	return resp, nil
}

// GetChannelInput is the input for getting a channel.
type GetChannelInput struct {
	ID string `path:"id" doc:"Channel ID (ULID)"`
}

// GetChannelOutput is the output for getting a channel.
type GetChannelOutput struct {
	Body ChannelResponse
}

// GetByID returns a channel by ID.
func (h *ChannelHandler) GetByID(ctx context.Context, input *GetChannelInput) (*GetChannelOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	channel, err := h.catalog.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrChannelNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}
	return &GetChannelOutput{Body: ChannelFromModel(channel)}, nil
}

// CreateChannelInput is the input for creating a channel.
type CreateChannelInput struct {
	Body struct {
		ChannelName   string `json:"channel_name" required:"true" doc:"Display name"`
		ChannelNumber int    `json:"channel_number,omitempty" doc:"Channel number"`
		StreamURL     string `json:"stream_url" required:"true" doc:"Source stream URL"`
		LogoURL       string `json:"logo_url,omitempty" doc:"Logo image URL"`
		GroupTitle    string `json:"group_title,omitempty" doc:"Channel group"`
		Language      string `json:"language,omitempty" doc:"Language code"`
	}
}

// CreateChannelOutput is the output for creating a channel.
type CreateChannelOutput struct {
	Body ChannelResponse
}

// Create creates a channel.
func (h *ChannelHandler) Create(ctx context.Context, input *CreateChannelInput) (*CreateChannelOutput, error) {
	channel := &models.Channel{
		ChannelName:   input.Body.ChannelName,
		ChannelNumber: input.Body.ChannelNumber,
		StreamURL:     input.Body.StreamURL,
		LogoURL:       input.Body.LogoURL,
		GroupTitle:    input.Body.GroupTitle,
		Language:      input.Body.Language,
	}

	if err := h.catalog.Create(ctx, channel); err != nil {
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create channel", err)
	}
	return &CreateChannelOutput{Body: ChannelFromModel(channel)}, nil
}

// UpdateChannelInput is the input for updating a channel.
type UpdateChannelInput struct {
	ID   string `path:"id" doc:"Channel ID (ULID)"`
	Body struct {
		ChannelName   string `json:"channel_name,omitempty"`
		ChannelNumber *int   `json:"channel_number,omitempty"`
		StreamURL     string `json:"stream_url,omitempty"`
		LogoURL       *string `json:"logo_url,omitempty"`
		GroupTitle    *string `json:"group_title,omitempty"`
		Language      *string `json:"language,omitempty"`
	}
}

// UpdateChannelOutput is the output for updating a channel.
type UpdateChannelOutput struct {
	Body ChannelResponse
}

// Update updates a channel.
func (h *ChannelHandler) Update(ctx context.Context, input *UpdateChannelInput) (*UpdateChannelOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	channel, err := h.catalog.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrChannelNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get channel", err)
	}

	if input.Body.ChannelName != "" {
		channel.ChannelName = input.Body.ChannelName
	}
	if input.Body.ChannelNumber != nil {
		channel.ChannelNumber = *input.Body.ChannelNumber
	}
	if input.Body.StreamURL != "" {
		channel.StreamURL = input.Body.StreamURL
	}
	if input.Body.LogoURL != nil {
		channel.LogoURL = *input.Body.LogoURL
	}
	if input.Body.GroupTitle != nil {
		channel.GroupTitle = *input.Body.GroupTitle
	}
	if input.Body.Language != nil {
		channel.Language = *input.Body.Language
	}

	if err := h.catalog.Update(ctx, channel); err != nil {
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to update channel", err)
	}
	return &UpdateChannelOutput{Body: ChannelFromModel(channel)}, nil
}

// DeleteChannelInput is the input for deleting a channel.
type DeleteChannelInput struct {
	ID string `path:"id" doc:"Channel ID (ULID)"`
}

// Delete deletes a channel.
func (h *ChannelHandler) Delete(ctx context.Context, input *DeleteChannelInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.catalog.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrChannelNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to delete channel", err)
	}
	return &struct{}{}, nil
}
