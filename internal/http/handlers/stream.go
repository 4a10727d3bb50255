package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"mosaic/internal/httpclient"
	"mosaic/internal/models"
	"mosaic/internal/resolver"
	"mosaic/internal/service"
	"mosaic/internal/supervisor"
)

// StreamHandler serves live stream content directly over HTTP. The GET
// endpoint is registered as a raw chi route because the response body is an
// open-ended media stream, not a JSON document.
type StreamHandler struct {
	resolver   *resolver.Resolver
	supervisor *supervisor.Supervisor
	settings   *service.SettingsService
	logger     *slog.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(res *resolver.Resolver, sup *supervisor.Supervisor, settings *service.SettingsService, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		resolver:   res,
		supervisor: sup,
		settings:   settings,
		logger:     logger.With(slog.String("component", "stream-handler")),
	}
}

// RegisterRoutes registers the raw streaming route on the router.
func (h *StreamHandler) RegisterRoutes(router chi.Router) {
	router.Get("/stream", h.Stream)
}

// Register registers the JSON stream control routes with the API.
func (h *StreamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "stopStream",
		Method:      "POST",
		Path:        "/api/v1/stream/stop",
		Summary:     "Stop streams by source URL",
		Description: "Stops every supervised session serving the given source URL. Idempotent.",
		Tags:        []string{"Streams"},
	}, h.Stop)
}

// Stream resolves the requested URL and serves it. Passthrough plans redirect
// the player straight to the upstream; transcoding plans spawn a child
// process and relay its output until the client disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	streamURL := r.URL.Query().Get("url")
	if streamURL == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	var opts resolver.Options
	if raw := r.URL.Query().Get("profileId"); raw != "" {
		id, err := models.ParseULID(raw)
		if err != nil {
			http.Error(w, "invalid profileId", http.StatusBadRequest)
			return
		}
		opts.ProfileID = id
	}
	if raw := r.URL.Query().Get("userAgentId"); raw != "" {
		id, err := models.ParseULID(raw)
		if err != nil {
			http.Error(w, "invalid userAgentId", http.StatusBadRequest)
			return
		}
		opts.UserAgentID = id
	}

	res, err := h.resolver.Resolve(ctx, streamURL, opts)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrConfigurationMissing):
			http.Error(w, "no active stream profile or user agent is configured", http.StatusPreconditionFailed)
		case errors.Is(err, resolver.ErrEmptyStreamURL):
			http.Error(w, "url query parameter is required", http.StatusBadRequest)
		default:
			http.Error(w, "failed to resolve stream", http.StatusInternalServerError)
		}
		return
	}

	if res.Passthrough {
		h.logger.Debug("redirecting passthrough stream",
			slog.String("url", httpclient.ObfuscateURLString(res.StreamURL)),
		)
		http.Redirect(w, r, res.StreamURL, http.StatusFound)
		return
	}

	h.serveTranscoded(w, r, res)
}

func (h *StreamHandler) serveTranscoded(w http.ResponseWriter, r *http.Request, res *resolver.Resolution) {
	ctx := r.Context()

	sess, err := h.supervisor.Start(ctx, res.StreamURL, res.Command)
	if err != nil {
		h.recordResult(res, false)
		if errors.Is(err, supervisor.ErrSpawnFailure) {
			http.Error(w, "failed to start the stream process", http.StatusBadGateway)
			return
		}
		http.Error(w, "failed to start the stream", http.StatusInternalServerError)
		return
	}

	// Streaming must not be cut off by a server write deadline.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	streamErr := sess.StreamTo(ctx, w)

	// A client walking away is a normal end, not a profile failure.
	switch {
	case ctx.Err() != nil:
		h.recordResult(res, true)
	case errors.Is(streamErr, supervisor.ErrNoOutput):
		h.recordResult(res, false)
	case sess.Err() != nil:
		h.recordResult(res, false)
	default:
		h.recordResult(res, true)
	}

	if streamErr != nil && ctx.Err() == nil {
		h.logger.Warn("stream ended with error",
			slog.String("url", httpclient.ObfuscateURLString(res.StreamURL)),
			slog.String("error", streamErr.Error()),
		)
	}

	_ = h.supervisor.Stop(context.Background(), sess.ID)
}

func (h *StreamHandler) recordResult(res *resolver.Resolution, success bool) {
	if h.settings == nil || res.Profile == nil {
		return
	}
	if err := h.settings.RecordProfileResult(context.Background(), res.Profile.ID, success); err != nil {
		h.logger.Debug("failed to record profile result", slog.String("error", err.Error()))
	}
}

// StopStreamInput is the input for stopping streams by source URL.
type StopStreamInput struct {
	Body struct {
		URL string `json:"url" required:"true" doc:"Source URL whose sessions should stop"`
	}
}

// StopStreamOutput is the output for stopping streams.
type StopStreamOutput struct {
	Body struct {
		Stopped bool `json:"stopped"`
	}
}

// Stop stops every supervised session serving the given source URL.
func (h *StreamHandler) Stop(ctx context.Context, input *StopStreamInput) (*StopStreamOutput, error) {
	if err := h.supervisor.StopBySource(ctx, input.Body.URL); err != nil {
		return nil, huma.Error500InternalServerError("failed to stop streams", err)
	}
	resp := &StopStreamOutput{}
	resp.Body.Stopped = true
	return resp, nil
}
