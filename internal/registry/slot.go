package registry

import (
	"time"

	"github.com/google/uuid"

	"mosaic/internal/models"
	"mosaic/internal/playback"
)

// SlotState is the lifecycle state of one grid slot.
type SlotState int

const (
	// SlotEmpty means no channel is assigned.
	SlotEmpty SlotState = iota

	// SlotStarting means an assignment is in flight.
	SlotStarting

	// SlotPlaying means playback is live.
	SlotPlaying

	// SlotStopping means a teardown is in flight.
	SlotStopping

	// SlotFailed means the last assignment failed. The slot keeps its
	// channel reference for display until it is stopped with a UI reset.
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotStarting:
		return "starting"
	case SlotPlaying:
		return "playing"
	case SlotStopping:
		return "stopping"
	case SlotFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChannelRef is the registry's denormalized reference to a catalog channel.
type ChannelRef struct {
	ID        models.ULID `json:"id"`
	Name      string      `json:"name"`
	StreamURL string      `json:"stream_url"`
	LogoURL   string      `json:"logo_url,omitempty"`
}

// slot is the registry's owned record for one grid position. All access goes
// through the registry mutex; no other component holds a reference.
type slot struct {
	id       uuid.UUID
	geometry models.SlotGeometry
	state    SlotState
	channel  *ChannelRef
	session  *StreamSession
	adapter  *playback.Adapter
	muted    bool
	volume   float64
	active   bool
	failure  error

	// generation increments on every assignment or stop. An in-flight
	// assignment that finishes under a stale generation stops whatever it
	// started instead of installing it.
	generation uint64

	createdAt time.Time
}

// SlotView is a point-in-time snapshot of a slot for listings.
type SlotView struct {
	ID        uuid.UUID          `json:"id"`
	Geometry  models.SlotGeometry `json:"geometry"`
	State     string             `json:"state"`
	Channel   *ChannelRef        `json:"channel,omitempty"`
	SessionID *uuid.UUID         `json:"session_id,omitempty"`
	Muted     bool               `json:"muted"`
	Volume    float64            `json:"volume"`
	Active    bool               `json:"active"`
	Error     string             `json:"error,omitempty"`
	BytesOut  uint64             `json:"bytes_out,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// view builds a SlotView. Caller holds the registry mutex.
func (s *slot) view() SlotView {
	v := SlotView{
		ID:        s.id,
		Geometry:  s.geometry,
		State:     s.state.String(),
		Channel:   s.channel,
		Muted:     s.muted,
		Volume:    s.volume,
		Active:    s.active,
		CreatedAt: s.createdAt,
	}
	if s.session != nil {
		id := s.session.ID
		v.SessionID = &id
	}
	if s.adapter != nil {
		v.BytesOut = s.adapter.BytesRead()
	}
	if s.failure != nil {
		v.Error = s.failure.Error()
	}
	return v
}
