package models

import (
	"gorm.io/gorm"
)

// Channel represents a live channel that can be assigned to a multiview slot.
type Channel struct {
	BaseModel

	// ChannelName is the display name.
	ChannelName string `gorm:"not null;size:512" json:"channel_name"`

	// ChannelNumber is the channel number if specified.
	ChannelNumber int `gorm:"default:0" json:"channel_number,omitempty"`

	// StreamURL is the upstream source URL for the channel.
	StreamURL string `gorm:"not null;size:4096" json:"stream_url"`

	// LogoURL is the URL to the channel logo.
	LogoURL string `gorm:"size:2048" json:"logo_url,omitempty"`

	// GroupTitle is the category/group this channel belongs to.
	GroupTitle string `gorm:"size:255;index" json:"group_title,omitempty"`

	// Language is the channel language if known.
	Language string `gorm:"size:50" json:"language,omitempty"`
}

// TableName returns the table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// Validate performs basic validation on the channel.
func (c *Channel) Validate() error {
	if c.ChannelName == "" {
		return ErrNameRequired
	}
	if c.StreamURL == "" {
		return ErrStreamURLRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the channel and generates ULID.
func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return c.Validate()
}

// BeforeUpdate is a GORM hook that validates the channel before update.
func (c *Channel) BeforeUpdate(tx *gorm.DB) error {
	return c.Validate()
}
