package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"mosaic/internal/models"
	"mosaic/internal/registry"
	"mosaic/internal/resolver"
	"mosaic/internal/service"
	"mosaic/internal/supervisor"
	"mosaic/internal/visibility"
)

// MultiviewHandler handles the multiview grid API endpoints. It drives the
// slot registry, the visibility controller, and the channel catalog.
type MultiviewHandler struct {
	registry   *registry.Registry
	catalog    *service.CatalogService
	visibility *visibility.Controller
	supervisor *supervisor.Supervisor
}

// NewMultiviewHandler creates a multiview handler.
func NewMultiviewHandler(reg *registry.Registry, catalog *service.CatalogService, vis *visibility.Controller, sup *supervisor.Supervisor) *MultiviewHandler {
	return &MultiviewHandler{
		registry:   reg,
		catalog:    catalog,
		visibility: vis,
		supervisor: sup,
	}
}

// Register registers the multiview routes with the API.
func (h *MultiviewHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSlots",
		Method:      "GET",
		Path:        "/api/v1/multiview/slots",
		Summary:     "List slots",
		Description: "Returns every grid slot in creation order",
		Tags:        []string{"Multiview"},
	}, h.ListSlots)

	huma.Register(api, huma.Operation{
		OperationID: "createSlot",
		Method:      "POST",
		Path:        "/api/v1/multiview/slots",
		Summary:     "Create slot",
		Description: "Adds an empty slot to the grid, subject to the slot capacity limit",
		Tags:        []string{"Multiview"},
	}, h.CreateSlot)

	huma.Register(api, huma.Operation{
		OperationID: "getSlot",
		Method:      "GET",
		Path:        "/api/v1/multiview/slots/{id}",
		Summary:     "Get slot",
		Tags:        []string{"Multiview"},
	}, h.GetSlot)

	huma.Register(api, huma.Operation{
		OperationID: "assignChannel",
		Method:      "PUT",
		Path:        "/api/v1/multiview/slots/{id}/channel",
		Summary:     "Assign channel to slot",
		Description: "Tears down the slot's previous stream, then resolves and starts the new one. A newer assignment or stop on the same slot supersedes one still in flight.",
		Tags:        []string{"Multiview"},
	}, h.AssignChannel)

	huma.Register(api, huma.Operation{
		OperationID: "stopSlot",
		Method:      "POST",
		Path:        "/api/v1/multiview/slots/{id}/stop",
		Summary:     "Stop slot",
		Description: "Stops the slot's stream. Idempotent. With reset_ui the failure placeholder is also cleared.",
		Tags:        []string{"Multiview"},
	}, h.StopSlot)

	huma.Register(api, huma.Operation{
		OperationID: "removeSlot",
		Method:      "DELETE",
		Path:        "/api/v1/multiview/slots/{id}",
		Summary:     "Remove slot",
		Description: "Stops the slot's stream and removes it from the grid",
		Tags:        []string{"Multiview"},
	}, h.RemoveSlot)

	huma.Register(api, huma.Operation{
		OperationID: "activateSlot",
		Method:      "POST",
		Path:        "/api/v1/multiview/slots/{id}/activate",
		Summary:     "Activate slot",
		Description: "Makes this the single active slot. The active slot is unmuted; all others are muted.",
		Tags:        []string{"Multiview"},
	}, h.ActivateSlot)

	huma.Register(api, huma.Operation{
		OperationID: "setSlotAudio",
		Method:      "POST",
		Path:        "/api/v1/multiview/slots/{id}/audio",
		Summary:     "Set slot audio",
		Tags:        []string{"Multiview"},
	}, h.SetAudio)

	huma.Register(api, huma.Operation{
		OperationID: "cleanupMultiview",
		Method:      "POST",
		Path:        "/api/v1/multiview/cleanup",
		Summary:     "Clean up all slots",
		Description: "Stops every slot concurrently and empties the grid",
		Tags:        []string{"Multiview"},
	}, h.Cleanup)

	huma.Register(api, huma.Operation{
		OperationID: "hideMultiview",
		Method:      "POST",
		Path:        "/api/v1/multiview/visibility/hide",
		Summary:     "Hide multiview",
		Description: "Snapshots the grid, then suspends every stream. Idempotent when already hidden.",
		Tags:        []string{"Multiview"},
	}, h.Hide)

	huma.Register(api, huma.Operation{
		OperationID: "showMultiview",
		Method:      "POST",
		Path:        "/api/v1/multiview/visibility/show",
		Summary:     "Show multiview",
		Description: "Returns to the visible state. With restore the hidden snapshot is replayed; either way the snapshot is consumed.",
		Tags:        []string{"Multiview"},
	}, h.Show)

	huma.Register(api, huma.Operation{
		OperationID: "getMultiviewStats",
		Method:      "GET",
		Path:        "/api/v1/multiview/stats",
		Summary:     "Multiview statistics",
		Description: "Returns slot views plus per-process resource usage for supervised sessions",
		Tags:        []string{"Multiview"},
	}, h.Stats)
}

// SlotGeometryInput mirrors the grid geometry in request bodies.
type SlotGeometryInput struct {
	Row     int `json:"row" doc:"Grid row"`
	Col     int `json:"col" doc:"Grid column"`
	RowSpan int `json:"row_span,omitempty" doc:"Rows spanned"`
	ColSpan int `json:"col_span,omitempty" doc:"Columns spanned"`
}

// ListSlotsOutput is the output for listing slots.
type ListSlotsOutput struct {
	Body struct {
		Slots      []registry.SlotView `json:"slots"`
		Visibility string              `json:"visibility"`
	}
}

// ListSlots returns every grid slot.
func (h *MultiviewHandler) ListSlots(ctx context.Context, _ *struct{}) (*ListSlotsOutput, error) {
	resp := &ListSlotsOutput{}
	resp.Body.Slots = h.registry.Slots()
	resp.Body.Visibility = h.visibility.State().String()
	return resp, nil
}

// CreateSlotInput is the input for creating a slot.
type CreateSlotInput struct {
	Body struct {
		Geometry SlotGeometryInput `json:"geometry" required:"true"`
	}
}

// CreateSlotOutput is the output for creating a slot.
type CreateSlotOutput struct {
	Body registry.SlotView
}

// CreateSlot adds an empty slot to the grid.
func (h *MultiviewHandler) CreateSlot(ctx context.Context, input *CreateSlotInput) (*CreateSlotOutput, error) {
	view, err := h.registry.CreateSlot(models.SlotGeometry{
		Row:     input.Body.Geometry.Row,
		Col:     input.Body.Geometry.Col,
		RowSpan: input.Body.Geometry.RowSpan,
		ColSpan: input.Body.Geometry.ColSpan,
	})
	if err != nil {
		if errors.Is(err, registry.ErrCapacityExceeded) {
			return nil, huma.Error409Conflict(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create slot", err)
	}
	return &CreateSlotOutput{Body: view}, nil
}

// SlotIDInput is the common path input for slot operations.
type SlotIDInput struct {
	ID string `path:"id" doc:"Slot ID (UUID)"`
}

// GetSlotOutput is the output for getting a slot.
type GetSlotOutput struct {
	Body registry.SlotView
}

// GetSlot returns one slot.
func (h *MultiviewHandler) GetSlot(ctx context.Context, input *SlotIDInput) (*GetSlotOutput, error) {
	slotID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid slot ID", err)
	}

	view, err := h.registry.Get(slotID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
	}
	return &GetSlotOutput{Body: view}, nil
}

// AssignChannelInput is the input for assigning a channel to a slot.
type AssignChannelInput struct {
	ID   string `path:"id" doc:"Slot ID (UUID)"`
	Body struct {
		ChannelID   string `json:"channel_id" required:"true" doc:"Catalog channel ID (ULID)"`
		ProfileID   string `json:"profile_id,omitempty" doc:"Stream profile override (ULID)"`
		UserAgentID string `json:"user_agent_id,omitempty" doc:"User agent override (ULID)"`
	}
}

// AssignChannelOutput is the output for assigning a channel.
type AssignChannelOutput struct {
	Body registry.SlotView
}

// AssignChannel binds a catalog channel to a slot and starts its stream.
func (h *MultiviewHandler) AssignChannel(ctx context.Context, input *AssignChannelInput) (*AssignChannelOutput, error) {
	slotID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid slot ID", err)
	}

	channelID, err := models.ParseULID(input.Body.ChannelID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid channel_id format", err)
	}

	channel, err := h.catalog.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, models.ErrChannelNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("channel %s not found", input.Body.ChannelID))
		}
		return nil, huma.Error500InternalServerError("failed to look up channel", err)
	}

	var opts resolver.Options
	if input.Body.ProfileID != "" {
		if opts.ProfileID, err = models.ParseULID(input.Body.ProfileID); err != nil {
			return nil, huma.Error400BadRequest("invalid profile_id format", err)
		}
	}
	if input.Body.UserAgentID != "" {
		if opts.UserAgentID, err = models.ParseULID(input.Body.UserAgentID); err != nil {
			return nil, huma.Error400BadRequest("invalid user_agent_id format", err)
		}
	}

	ref := registry.ChannelRef{
		ID:        channel.ID,
		Name:      channel.ChannelName,
		StreamURL: channel.StreamURL,
		LogoURL:   channel.LogoURL,
	}

	if err := h.registry.AssignChannel(ctx, slotID, ref, opts); err != nil {
		switch {
		case errors.Is(err, registry.ErrSlotNotFound):
			return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
		case errors.Is(err, registry.ErrSlotStopping):
			return nil, huma.Error409Conflict("slot is stopping; retry when the stop completes")
		case errors.Is(err, resolver.ErrConfigurationMissing):
			return nil, huma.Error412PreconditionFailed("no active stream profile or user agent is configured", err)
		case errors.Is(err, supervisor.ErrSpawnFailure):
			return nil, huma.Error502BadGateway("failed to start the stream process", err)
		default:
			return nil, huma.Error502BadGateway("failed to start playback", err)
		}
	}

	view, err := h.registry.Get(slotID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
	}
	return &AssignChannelOutput{Body: view}, nil
}

// StopSlotInput is the input for stopping a slot.
type StopSlotInput struct {
	ID   string `path:"id" doc:"Slot ID (UUID)"`
	Body struct {
		ResetUI bool `json:"reset_ui,omitempty" doc:"Also clear the failure placeholder"`
	}
}

// StopSlotOutput is the output for stopping a slot.
type StopSlotOutput struct {
	Body registry.SlotView
}

// StopSlot stops a slot's stream.
func (h *MultiviewHandler) StopSlot(ctx context.Context, input *StopSlotInput) (*StopSlotOutput, error) {
	slotID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid slot ID", err)
	}

	if err := h.registry.StopSlot(ctx, slotID, input.Body.ResetUI); err != nil {
		if errors.Is(err, registry.ErrSlotNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
		}
		// Teardown failed after retry. The slot was cleared locally anyway,
		// so report the degraded outcome rather than a server error.
		if errors.Is(err, registry.ErrTeardown) {
			view, getErr := h.registry.Get(slotID)
			if getErr != nil {
				return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
			}
			return &StopSlotOutput{Body: view}, nil
		}
		return nil, huma.Error500InternalServerError("failed to stop slot", err)
	}

	view, err := h.registry.Get(slotID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
	}
	return &StopSlotOutput{Body: view}, nil
}

// RemoveSlot stops a slot and removes it from the grid.
func (h *MultiviewHandler) RemoveSlot(ctx context.Context, input *SlotIDInput) (*struct{}, error) {
	slotID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid slot ID", err)
	}

	if err := h.registry.RemoveSlot(ctx, slotID); err != nil {
		if errors.Is(err, registry.ErrSlotNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
		}
		if !errors.Is(err, registry.ErrTeardown) {
			return nil, huma.Error500InternalServerError("failed to remove slot", err)
		}
	}
	return &struct{}{}, nil
}

// ActivateSlotOutput is the output for activating a slot.
type ActivateSlotOutput struct {
	Body struct {
		Slots []registry.SlotView `json:"slots"`
	}
}

// ActivateSlot makes the given slot the single active one.
func (h *MultiviewHandler) ActivateSlot(ctx context.Context, input *SlotIDInput) (*ActivateSlotOutput, error) {
	slotID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid slot ID", err)
	}

	if err := h.registry.SetActive(slotID); err != nil {
		if errors.Is(err, registry.ErrSlotNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to activate slot", err)
	}

	resp := &ActivateSlotOutput{}
	resp.Body.Slots = h.registry.Slots()
	return resp, nil
}

// SetAudioInput is the input for setting slot audio.
type SetAudioInput struct {
	ID   string `path:"id" doc:"Slot ID (UUID)"`
	Body struct {
		Muted  *bool    `json:"muted,omitempty"`
		Volume *float64 `json:"volume,omitempty" doc:"Playback volume, clamped to [0,1]"`
	}
}

// SetAudioOutput is the output for setting slot audio.
type SetAudioOutput struct {
	Body registry.SlotView
}

// SetAudio updates a slot's mute state and volume.
func (h *MultiviewHandler) SetAudio(ctx context.Context, input *SetAudioInput) (*SetAudioOutput, error) {
	slotID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid slot ID", err)
	}

	if err := h.registry.SetAudio(slotID, input.Body.Muted, input.Body.Volume); err != nil {
		if errors.Is(err, registry.ErrSlotNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to set slot audio", err)
	}

	view, err := h.registry.Get(slotID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("slot %s not found", input.ID))
	}
	return &SetAudioOutput{Body: view}, nil
}

// CleanupOutput is the output for cleaning up the grid.
type CleanupOutput struct {
	Body struct {
		Cleaned bool   `json:"cleaned"`
		Detail  string `json:"detail,omitempty"`
	}
}

// Cleanup stops every slot and empties the grid.
func (h *MultiviewHandler) Cleanup(ctx context.Context, _ *struct{}) (*CleanupOutput, error) {
	resp := &CleanupOutput{}
	resp.Body.Cleaned = true
	if err := h.registry.CleanupAll(ctx); err != nil {
		// Slots were cleared locally regardless; surface the teardown detail.
		resp.Body.Detail = err.Error()
	}
	return resp, nil
}

// VisibilityOutput is the output for visibility transitions.
type VisibilityOutput struct {
	Body struct {
		State       string `json:"state"`
		HasSnapshot bool   `json:"has_snapshot"`
	}
}

// Hide snapshots the grid and suspends every stream.
func (h *MultiviewHandler) Hide(ctx context.Context, _ *struct{}) (*VisibilityOutput, error) {
	if err := h.visibility.Hide(ctx); err != nil {
		return nil, huma.Error500InternalServerError("failed to hide multiview", err)
	}
	resp := &VisibilityOutput{}
	resp.Body.State = h.visibility.State().String()
	resp.Body.HasSnapshot = h.visibility.HasSnapshot()
	return resp, nil
}

// ShowInput is the input for returning to the visible state.
type ShowInput struct {
	Body struct {
		Restore bool `json:"restore,omitempty" doc:"Replay the snapshot taken when hiding"`
	}
}

// Show returns the grid to the visible state.
func (h *MultiviewHandler) Show(ctx context.Context, input *ShowInput) (*VisibilityOutput, error) {
	if err := h.visibility.Show(ctx, input.Body.Restore); err != nil {
		return nil, huma.Error500InternalServerError("failed to show multiview", err)
	}
	resp := &VisibilityOutput{}
	resp.Body.State = h.visibility.State().String()
	resp.Body.HasSnapshot = h.visibility.HasSnapshot()
	return resp, nil
}

// SessionStatsResponse is per-process resource usage for one session.
type SessionStatsResponse struct {
	ID            string  `json:"id"`
	SourceURL     string  `json:"source_url"`
	State         string  `json:"state"`
	PID           int     `json:"pid"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	BytesOut      uint64  `json:"bytes_out"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss_bytes"`
}

// StatsOutput is the output for multiview statistics.
type StatsOutput struct {
	Body struct {
		Slots    []registry.SlotView    `json:"slots"`
		Sessions []SessionStatsResponse `json:"sessions"`
	}
}

// Stats returns slot views plus supervised process resource usage.
func (h *MultiviewHandler) Stats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	resp := &StatsOutput{}
	resp.Body.Slots = h.registry.Slots()

	infos := h.supervisor.Sessions()
	resp.Body.Sessions = make([]SessionStatsResponse, 0, len(infos))
	for _, info := range infos {
		resp.Body.Sessions = append(resp.Body.Sessions, SessionStatsResponse{
			ID:            info.ID.String(),
			SourceURL:     info.SourceURL,
			State:         info.State,
			PID:           info.PID,
			UptimeSeconds: int64(info.Uptime / time.Second),
			BytesOut:      info.BytesOut,
			CPUPercent:    info.CPUPercent,
			MemoryRSS:     info.MemoryRSS,
		})
	}
	return resp, nil
}
