package models

import (
	"strings"

	"gorm.io/gorm"
)

// Placeholders substituted into a profile's command template at resolve time.
const (
	PlaceholderStreamURL = "{streamUrl}"
	PlaceholderUserAgent = "{userAgent}"
)

// StreamProfile defines how a stream slot obtains its media.
//
// A passthrough profile hands the upstream URL directly to the player. A
// transcoding profile describes the child process to spawn via a command
// template carrying {streamUrl} and optionally {userAgent} placeholders.
type StreamProfile struct {
	BaseModel

	// Name is a unique identifier for this profile.
	Name string `gorm:"uniqueIndex;not null;size:100" json:"name"`

	// Description explains what this profile is for.
	Description string `gorm:"size:500" json:"description,omitempty"`

	// IsActive marks the profile currently selected for playback. At most one
	// profile is active at a time.
	IsActive bool `gorm:"default:false;index" json:"is_active"`

	// IsSystem indicates a built-in profile that cannot be deleted.
	IsSystem bool `gorm:"default:false" json:"is_system"`

	// Passthrough indicates the upstream URL is played directly with no
	// child process.
	Passthrough bool `gorm:"default:false" json:"passthrough"`

	// CommandTemplate is the child process command line for transcoding
	// profiles. Tokens are whitespace separated; {streamUrl} is required and
	// {userAgent} is substituted when present.
	CommandTemplate string `gorm:"size:2000" json:"command_template,omitempty"`

	// Profile usage statistics.
	SuccessCount int64 `gorm:"default:0" json:"success_count"`
	FailureCount int64 `gorm:"default:0" json:"failure_count"`
}

// TableName returns the table name for StreamProfile.
func (StreamProfile) TableName() string {
	return "stream_profiles"
}

// Validate performs basic validation on the profile.
func (p *StreamProfile) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if !p.Passthrough {
		if strings.TrimSpace(p.CommandTemplate) == "" {
			return ErrCommandTemplateRequired
		}
		if !strings.Contains(p.CommandTemplate, PlaceholderStreamURL) {
			return ErrCommandTemplateMissingURL
		}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the profile and generates ULID.
func (p *StreamProfile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the profile before update.
func (p *StreamProfile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}

// UsesUserAgent returns true if the command template references the
// user agent placeholder.
func (p *StreamProfile) UsesUserAgent() bool {
	return strings.Contains(p.CommandTemplate, PlaceholderUserAgent)
}
