package form

import (
	"regform/internal/registration/models"
	"regform/internal/validation"
)

// State is a point-in-time copy of a form, safe to hand to renderers.
type State struct {
	Phase          Phase                       `json:"phase"`
	Values         map[validation.Field]string `json:"values"`
	Errors         validation.ErrorMap         `json:"errors"`
	SuccessMessage string                      `json:"successMessage,omitempty"`
	SubmitError    string                      `json:"submitError,omitempty"`
	SubmitEnabled  bool                        `json:"submitEnabled"`
	Saved          *models.Registration        `json:"saved,omitempty"`
}

// ErrorMessage returns the displayed message for field, or "".
func (s State) ErrorMessage(field validation.Field) string {
	if out, ok := s.Errors[field]; ok {
		return out.Message()
	}
	return ""
}
