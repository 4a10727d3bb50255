package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrStreamURLRequired indicates a required stream URL field is empty.
	ErrStreamURLRequired = errors.New("stream_url is required")

	// ErrUserAgentValueRequired indicates a required user agent value is empty.
	ErrUserAgentValueRequired = errors.New("user agent value is required")

	// ErrCommandTemplateRequired indicates a transcoding profile has no command template.
	ErrCommandTemplateRequired = errors.New("command template is required for transcoding profiles")

	// ErrCommandTemplateMissingURL indicates a command template has no stream URL placeholder.
	ErrCommandTemplateMissingURL = errors.New("command template must contain the {streamUrl} placeholder")

	// ErrLayoutSlotsRequired indicates a layout snapshot has no slots.
	ErrLayoutSlotsRequired = errors.New("layout must contain at least one slot")

	// ErrStreamProfileNotFound indicates a stream profile was not found.
	ErrStreamProfileNotFound = errors.New("stream profile not found")

	// ErrUserAgentNotFound indicates a user agent was not found.
	ErrUserAgentNotFound = errors.New("user agent not found")

	// ErrChannelNotFound indicates a channel was not found.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrLayoutNotFound indicates a multiview layout was not found.
	ErrLayoutNotFound = errors.New("multiview layout not found")
)
