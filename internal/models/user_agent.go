package models

import (
	"gorm.io/gorm"
)

// UserAgent is a named User-Agent string presented to upstream servers.
type UserAgent struct {
	BaseModel

	// Name is a unique identifier for this user agent.
	Name string `gorm:"uniqueIndex;not null;size:100" json:"name"`

	// Value is the User-Agent header value.
	Value string `gorm:"not null;size:512" json:"value"`

	// IsActive marks the user agent currently selected for playback. At most
	// one user agent is active at a time.
	IsActive bool `gorm:"default:false;index" json:"is_active"`

	// IsSystem indicates a built-in user agent that cannot be deleted.
	IsSystem bool `gorm:"default:false" json:"is_system"`
}

// TableName returns the table name for UserAgent.
func (UserAgent) TableName() string {
	return "user_agents"
}

// Validate performs basic validation on the user agent.
func (u *UserAgent) Validate() error {
	if u.Name == "" {
		return ErrNameRequired
	}
	if u.Value == "" {
		return ErrUserAgentValueRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the user agent and generates ULID.
func (u *UserAgent) BeforeCreate(tx *gorm.DB) error {
	if err := u.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return u.Validate()
}

// BeforeUpdate is a GORM hook that validates the user agent before update.
func (u *UserAgent) BeforeUpdate(tx *gorm.DB) error {
	return u.Validate()
}
