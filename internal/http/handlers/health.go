// Package handlers implements the mosaic API endpoints.
package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"mosaic/internal/database"
	"mosaic/internal/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        *database.DB
	startedAt time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startedAt: time.Now(),
	}
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns service health and build information",
		Tags:        []string{"System"},
	}, h.Get)
}

// HealthOutput is the health check response.
type HealthOutput struct {
	Body struct {
		Status        string `json:"status"`
		Version       string `json:"version"`
		Commit        string `json:"commit,omitempty"`
		UptimeSeconds int64  `json:"uptime_seconds"`
		Database      string `json:"database"`
	}
}

// Get returns service health.
func (h *HealthHandler) Get(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := &HealthOutput{}
	resp.Body.Status = "ok"
	resp.Body.Version = version.Version
	resp.Body.Commit = version.Commit
	resp.Body.UptimeSeconds = int64(time.Since(h.startedAt).Seconds())

	resp.Body.Database = "ok"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			resp.Body.Status = "degraded"
			resp.Body.Database = err.Error()
		}
	}
	return resp, nil
}
