package service

import "errors"

// Sentinel errors returned by the service layer.
var (
	// ErrSystemRecord indicates an attempt to modify or delete a
	// system-provided profile or user agent.
	ErrSystemRecord = errors.New("system records cannot be modified or deleted")

	// ErrLayoutNameTaken indicates a layout with the same name exists.
	ErrLayoutNameTaken = errors.New("layout name already in use")
)
