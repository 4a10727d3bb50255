package handlers

import (
	"errors"

	"mosaic/internal/models"
)

// isValidationError reports whether err is a model validation failure that
// should map to a 400 response rather than a 500.
func isValidationError(err error) bool {
	var vErr models.ErrValidation
	if errors.As(err, &vErr) {
		return true
	}
	for _, sentinel := range []error{
		models.ErrNameRequired,
		models.ErrStreamURLRequired,
		models.ErrUserAgentValueRequired,
		models.ErrCommandTemplateRequired,
		models.ErrCommandTemplateMissingURL,
		models.ErrLayoutSlotsRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
