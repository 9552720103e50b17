package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regform/internal/validation"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/sentinel"
)

func jean() Person {
	return Person{
		FirstName:  "Jean",
		LastName:   "Dupont",
		Email:      "jean.dupont@example.com",
		BirthDate:  validation.NewDate(1980, time.May, 12),
		City:       "Paris",
		PostalCode: "75001",
	}
}

func TestRegistrationJSON(t *testing.T) {
	ts := time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)
	reg := NewRegistration(jean(), ts)
	reg.ID = "11"

	raw, err := json.Marshal(reg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "11",
		"firstName": "Jean",
		"lastName": "Dupont",
		"email": "jean.dupont@example.com",
		"birthDate": "1980-05-12",
		"city": "Paris",
		"postalCode": "75001",
		"timestamp": "2025-03-02T10:00:00Z"
	}`, string(raw))

	var back Registration
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, reg, back)
}

func TestPersonValuesRoundTrip(t *testing.T) {
	p := jean()
	back, err := PersonFromValues(p.Values())
	require.NoError(t, err)
	assert.Equal(t, p, back)
	assert.True(t, validation.ValidateForm(p.Draft(), time.Now()).Valid())
}

func TestPersonFromValuesRejectsBadDate(t *testing.T) {
	_, err := PersonFromValues(map[validation.Field]string{validation.BirthDate: "pas une date"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Jean Dupont", Registration{Person: jean()}.FullName())
	assert.Equal(t, "Dupont", Registration{Person: Person{LastName: "Dupont"}}.FullName())
	assert.Equal(t, "Jean", Registration{Person: Person{FirstName: "Jean"}}.FullName())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"conflict sentinel", fmt.Errorf("insert: %w", sentinel.ErrConflict), FailureDuplicate},
		{"conflict code", dErrors.New(dErrors.CodeConflict, "email already registered"), FailureDuplicate},
		{"unavailable sentinel", fmt.Errorf("post: %w", sentinel.ErrUnavailable), FailureServerUnavailable},
		{"unavailable code", dErrors.Wrap(errors.New("503"), dErrors.CodeUnavailable, "down"), FailureServerUnavailable},
		{"malformed response", fmt.Errorf("decode: %w", sentinel.ErrMalformed), FailureUnknown},
		{"network error", errors.New("dial tcp: connection refused"), FailureUnknown},
		{"deadline", context.DeadlineExceeded, FailureUnknown},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFailureMessages(t *testing.T) {
	assert.Equal(t, "Email already exists", FailureDuplicate.Message())
	assert.Equal(t, "Server is down. Please try again later.", FailureServerUnavailable.Message())
	assert.Equal(t, "Failed to save user to API", FailureUnknown.Message())
	assert.Equal(t, "Failed to save user to API", FailureKind("other").Message())
}
