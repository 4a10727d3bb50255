package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"mosaic/internal/models"
	"mosaic/internal/registry"
	"mosaic/internal/service"
)

// LayoutHandler handles multiview layout API endpoints. Layouts store
// geometry and channel references; applying one re-derives every stream.
type LayoutHandler struct {
	layouts  *service.LayoutService
	registry *registry.Registry
}

// NewLayoutHandler creates a layout handler.
func NewLayoutHandler(layouts *service.LayoutService, reg *registry.Registry) *LayoutHandler {
	return &LayoutHandler{layouts: layouts, registry: reg}
}

// Register registers the layout routes with the API.
func (h *LayoutHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listLayouts",
		Method:      "GET",
		Path:        "/api/v1/multiview/layouts",
		Summary:     "List layouts",
		Description: "Returns all saved multiview layouts",
		Tags:        []string{"Layouts"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getLayout",
		Method:      "GET",
		Path:        "/api/v1/multiview/layouts/{id}",
		Summary:     "Get layout",
		Tags:        []string{"Layouts"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createLayout",
		Method:      "POST",
		Path:        "/api/v1/multiview/layouts",
		Summary:     "Save layout",
		Description: "Saves a named layout. With from_current_grid the live grid arrangement is captured instead of the provided slots.",
		Tags:        []string{"Layouts"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "applyLayout",
		Method:      "POST",
		Path:        "/api/v1/multiview/layouts/{id}/apply",
		Summary:     "Apply layout",
		Description: "Tears down the current grid and rebuilds it from the saved layout",
		Tags:        []string{"Layouts"},
	}, h.Apply)

	huma.Register(api, huma.Operation{
		OperationID: "deleteLayout",
		Method:      "DELETE",
		Path:        "/api/v1/multiview/layouts/{id}",
		Summary:     "Delete layout",
		Tags:        []string{"Layouts"},
	}, h.Delete)
}

// LayoutSlotResponse represents one saved slot in API responses.
type LayoutSlotResponse struct {
	Geometry    models.SlotGeometry `json:"geometry"`
	ChannelID   string              `json:"channel_id,omitempty"`
	ChannelName string              `json:"channel_name,omitempty"`
	StreamURL   string              `json:"stream_url,omitempty"`
	Muted       bool                `json:"muted"`
	Volume      float64             `json:"volume"`
	Active      bool                `json:"active"`
}

// LayoutResponse represents a layout in API responses.
type LayoutResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Slots     []LayoutSlotResponse `json:"slots"`
	CreatedAt string               `json:"created_at"`
	UpdatedAt string               `json:"updated_at"`
}

// LayoutFromModel converts a model to a response.
func LayoutFromModel(m *models.MultiviewLayout) LayoutResponse {
	slots := make([]LayoutSlotResponse, 0, len(m.Slots))
	for _, s := range m.Slots {
		slot := LayoutSlotResponse{
			Geometry:    s.Geometry,
			ChannelName: s.ChannelName,
			StreamURL:   s.StreamURL,
			Muted:       s.Muted,
			Volume:      s.Volume,
			Active:      s.Active,
		}
		if !s.ChannelID.IsZero() {
			slot.ChannelID = s.ChannelID.String()
		}
		slots = append(slots, slot)
	}
	return LayoutResponse{
		ID:        m.ID.String(),
		Name:      m.Name,
		Slots:     slots,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
	}
}

// ListLayoutsOutput is the output for listing layouts.
type ListLayoutsOutput struct {
	Body struct {
		Layouts []LayoutResponse `json:"layouts"`
	}
}

// List returns all saved layouts.
func (h *LayoutHandler) List(ctx context.Context, _ *struct{}) (*ListLayoutsOutput, error) {
	layouts, err := h.layouts.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list layouts", err)
	}

	resp := &ListLayoutsOutput{}
	resp.Body.Layouts = make([]LayoutResponse, 0, len(layouts))
	for _, l := range layouts {
		resp.Body.Layouts = append(resp.Body.Layouts, LayoutFromModel(l))
	}
	return resp, nil
}

// GetLayoutInput is the input for getting a layout.
type GetLayoutInput struct {
	ID string `path:"id" doc:"Layout ID (ULID)"`
}

// GetLayoutOutput is the output for getting a layout.
type GetLayoutOutput struct {
	Body LayoutResponse
}

// GetByID returns a layout by ID.
func (h *LayoutHandler) GetByID(ctx context.Context, input *GetLayoutInput) (*GetLayoutOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	layout, err := h.layouts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrLayoutNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("layout %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get layout", err)
	}
	return &GetLayoutOutput{Body: LayoutFromModel(layout)}, nil
}

// CreateLayoutInput is the input for saving a layout.
type CreateLayoutInput struct {
	Body struct {
		Name            string              `json:"name" required:"true" doc:"Unique layout name"`
		FromCurrentGrid bool                `json:"from_current_grid,omitempty" doc:"Capture the live grid instead of the provided slots"`
		Slots           []LayoutSlotResponse `json:"slots,omitempty" doc:"Slot arrangement to save"`
	}
}

// CreateLayoutOutput is the output for saving a layout.
type CreateLayoutOutput struct {
	Body LayoutResponse
}

// Create saves a named layout.
func (h *LayoutHandler) Create(ctx context.Context, input *CreateLayoutInput) (*CreateLayoutOutput, error) {
	var slots models.LayoutSlotList
	if input.Body.FromCurrentGrid {
		slots = h.registry.Snapshot()
		if len(slots) == 0 {
			return nil, huma.Error400BadRequest("current grid has no slots to save")
		}
	} else {
		slots = make(models.LayoutSlotList, 0, len(input.Body.Slots))
		for _, s := range input.Body.Slots {
			slot := models.LayoutSlot{
				Geometry:    s.Geometry,
				ChannelName: s.ChannelName,
				StreamURL:   s.StreamURL,
				Muted:       s.Muted,
				Volume:      s.Volume,
				Active:      s.Active,
			}
			if s.ChannelID != "" {
				id, err := models.ParseULID(s.ChannelID)
				if err != nil {
					return nil, huma.Error400BadRequest("invalid channel_id in slot", err)
				}
				slot.ChannelID = id
			}
			slots = append(slots, slot)
		}
	}

	layout := &models.MultiviewLayout{
		Name:  input.Body.Name,
		Slots: slots,
	}

	if err := h.layouts.Create(ctx, layout); err != nil {
		if errors.Is(err, service.ErrLayoutNameTaken) {
			return nil, huma.Error409Conflict(fmt.Sprintf("layout name %q already exists", input.Body.Name))
		}
		if isValidationError(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to save layout", err)
	}
	return &CreateLayoutOutput{Body: LayoutFromModel(layout)}, nil
}

// ApplyLayoutInput is the input for applying a layout.
type ApplyLayoutInput struct {
	ID string `path:"id" doc:"Layout ID (ULID)"`
}

// ApplyLayoutOutput is the output for applying a layout.
type ApplyLayoutOutput struct {
	Body struct {
		Applied string `json:"applied" doc:"Name of the applied layout"`
		Slots   int    `json:"slots" doc:"Number of slots created"`
	}
}

// Apply tears down the current grid and rebuilds it from a saved layout.
func (h *LayoutHandler) Apply(ctx context.Context, input *ApplyLayoutInput) (*ApplyLayoutOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	layout, err := h.layouts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrLayoutNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("layout %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get layout", err)
	}

	if err := h.registry.CleanupAll(ctx); err != nil {
		return nil, huma.Error500InternalServerError("failed to clear current grid", err)
	}
	if err := h.registry.Restore(ctx, layout.Slots); err != nil {
		return nil, huma.Error500InternalServerError("failed to apply layout", err)
	}

	resp := &ApplyLayoutOutput{}
	resp.Body.Applied = layout.Name
	resp.Body.Slots = len(layout.Slots)
	return resp, nil
}

// DeleteLayoutInput is the input for deleting a layout.
type DeleteLayoutInput struct {
	ID string `path:"id" doc:"Layout ID (ULID)"`
}

// Delete deletes a layout.
func (h *LayoutHandler) Delete(ctx context.Context, input *DeleteLayoutInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.layouts.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrLayoutNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("layout %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to delete layout", err)
	}
	return &struct{}{}, nil
}
