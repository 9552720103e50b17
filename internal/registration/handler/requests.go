package handler

import (
	"strings"
	"time"

	"regform/internal/form"
	"regform/internal/registration/models"
	"regform/internal/validation"
	dErrors "regform/pkg/domain-errors"
)

// createUserRequest is the body of POST /users. Field rules are the form's
// job; the endpoint only checks what it needs to store the record.
type createUserRequest struct {
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      string     `json:"email"`
	BirthDate  string     `json:"birthDate"`
	City       string     `json:"city"`
	PostalCode string     `json:"postalCode"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

func (r *createUserRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.BirthDate = strings.TrimSpace(r.BirthDate)
	r.City = strings.TrimSpace(r.City)
	r.PostalCode = strings.TrimSpace(r.PostalCode)
}

func (r *createUserRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if r.BirthDate != "" {
		if _, err := validation.ParseDate(r.BirthDate); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "birthDate must be formatted YYYY-MM-DD")
		}
	}
	return nil
}

func (r *createUserRequest) registration(now time.Time) (models.Registration, error) {
	var birth validation.Date
	if r.BirthDate != "" {
		d, err := validation.ParseDate(r.BirthDate)
		if err != nil {
			return models.Registration{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid birthDate")
		}
		birth = d
	}
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		now = *r.Timestamp
	}
	return models.NewRegistration(models.Person{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		BirthDate:  birth,
		City:       r.City,
		PostalCode: r.PostalCode,
	}, now), nil
}

// fieldValueRequest is the body of PUT /forms/{id}/fields/{field}. Values
// are kept verbatim; the field rules decide what is acceptable.
type fieldValueRequest struct {
	Value *string `json:"value"`
}

func (r *fieldValueRequest) Normalize() {}

func (r *fieldValueRequest) Validate() error {
	if r.Value == nil {
		return dErrors.New(dErrors.CodeBadRequest, "value is required")
	}
	return nil
}

type formResponse struct {
	ID string `json:"id"`
	form.State
}
