package models

import (
	"time"

	"regform/internal/validation"
	dErrors "regform/pkg/domain-errors"
)

// Person is the identity, contact and address data a user submits.
type Person struct {
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Email      string          `json:"email"`
	BirthDate  validation.Date `json:"birthDate"`
	City       string          `json:"city"`
	PostalCode string          `json:"postalCode"`
}

// Draft exposes the person to the field rules.
func (p Person) Draft() validation.Draft {
	return validation.Draft{
		validation.FirstName:  p.FirstName,
		validation.LastName:   p.LastName,
		validation.Email:      p.Email,
		validation.BirthDate:  p.BirthDate,
		validation.City:       p.City,
		validation.PostalCode: p.PostalCode,
	}
}

// Values renders the person as form text inputs.
func (p Person) Values() map[validation.Field]string {
	return map[validation.Field]string{
		validation.FirstName:  p.FirstName,
		validation.LastName:   p.LastName,
		validation.Email:      p.Email,
		validation.BirthDate:  p.BirthDate.String(),
		validation.City:       p.City,
		validation.PostalCode: p.PostalCode,
	}
}

// PersonFromValues builds a Person from form text inputs. The birth date must
// parse; callers run the field rules first.
func PersonFromValues(values map[validation.Field]string) (Person, error) {
	birth, err := validation.ParseDate(values[validation.BirthDate])
	if err != nil {
		return Person{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid birth date")
	}
	return Person{
		FirstName:  values[validation.FirstName],
		LastName:   values[validation.LastName],
		Email:      values[validation.Email],
		BirthDate:  birth,
		City:       values[validation.City],
		PostalCode: values[validation.PostalCode],
	}, nil
}

// Registration is a persisted Person.
//
// Invariants:
//   - ID is assigned by the store (or the remote API) on save; empty before
//   - Timestamp is set when the form is submitted, not when the store writes
type Registration struct {
	ID string `json:"id,omitempty"`
	Person
	Timestamp time.Time `json:"timestamp"`
}

// NewRegistration stamps a person for saving.
func NewRegistration(p Person, now time.Time) Registration {
	return Registration{Person: p, Timestamp: now.UTC()}
}

// FullName joins first and last name for display.
func (r Registration) FullName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.LastName
	}
}
