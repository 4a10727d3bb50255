package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// SlotGeometry describes where a slot sits in the multiview grid.
type SlotGeometry struct {
	Row     int `json:"row"`
	Col     int `json:"col"`
	RowSpan int `json:"row_span,omitempty"`
	ColSpan int `json:"col_span,omitempty"`
}

// LayoutSlot is one saved slot in a layout snapshot. It carries geometry and
// a channel reference only; process and playback handles are never persisted.
type LayoutSlot struct {
	Geometry    SlotGeometry `json:"geometry"`
	ChannelID   ULID         `json:"channel_id,omitempty"`
	ChannelName string       `json:"channel_name,omitempty"`
	StreamURL   string       `json:"stream_url,omitempty"`
	Muted       bool         `json:"muted"`
	Volume      float64      `json:"volume"`
	Active      bool         `json:"active"`
}

// LayoutSlotList stores layout slots as a JSON column.
type LayoutSlotList []LayoutSlot

// Value implements driver.Valuer for database storage.
func (l LayoutSlotList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshaling layout slots: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval.
func (l *LayoutSlotList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for layout slots: %T", value)
	}

	if len(data) == 0 {
		*l = nil
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("scanning layout slots: %w", err)
	}
	return nil
}

// GormDataType returns the GORM data type for LayoutSlotList.
func (LayoutSlotList) GormDataType() string {
	return "text"
}

// MultiviewLayout is a named snapshot of a multiview grid arrangement.
type MultiviewLayout struct {
	BaseModel

	// Name is a unique identifier for this layout.
	Name string `gorm:"uniqueIndex;not null;size:100" json:"name"`

	// Slots is the saved grid arrangement.
	Slots LayoutSlotList `gorm:"type:text" json:"slots"`
}

// TableName returns the table name for MultiviewLayout.
func (MultiviewLayout) TableName() string {
	return "multiview_layouts"
}

// Validate performs basic validation on the layout.
func (m *MultiviewLayout) Validate() error {
	if m.Name == "" {
		return ErrNameRequired
	}
	if len(m.Slots) == 0 {
		return ErrLayoutSlotsRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the layout and generates ULID.
func (m *MultiviewLayout) BeforeCreate(tx *gorm.DB) error {
	if err := m.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return m.Validate()
}

// BeforeUpdate is a GORM hook that validates the layout before update.
func (m *MultiviewLayout) BeforeUpdate(tx *gorm.DB) error {
	return m.Validate()
}
