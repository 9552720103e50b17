// Package validation holds the registration field rules, the age calculator
// and the aggregator that runs every rule over a form draft.
//
// Rules never return Go errors. Each one classifies a raw value as Valid or
// Invalid with a reason Code and a human message; callers branch on
// Outcome.IsValid. Rules are pure: the birth-date rule takes the reference
// time as an argument instead of reading the clock.
package validation

import "encoding/json"

// Code is the closed set of reasons a field can be rejected for.
type Code string

const (
	CodeMissingName      Code = "MISSING_NAME"
	CodeMissingEmail     Code = "MISSING_EMAIL"
	CodeMissingCode      Code = "MISSING_CODE"
	CodeMissingCity      Code = "MISSING_CITY"
	CodeMissingBirth     Code = "MISSING_BIRTH"
	CodeInvalidType      Code = "INVALID_TYPE"
	CodeInvalidBirthType Code = "INVALID_BIRTH_TYPE"
	CodeInvalidFormat    Code = "INVALID_FORMAT"
	CodeInvalidDate      Code = "INVALID_DATE"
	CodeMinor            Code = "MINOR"
)

// Outcome is the tagged result of a rule: either valid, or invalid with a
// code and message. The zero value is valid.
type Outcome struct {
	code    Code
	message string
}

// Valid returns the accepting outcome.
func Valid() Outcome {
	return Outcome{}
}

// Invalid returns a rejecting outcome.
func Invalid(code Code, message string) Outcome {
	return Outcome{code: code, message: message}
}

func (o Outcome) IsValid() bool {
	return o.code == ""
}

// Code is empty for valid outcomes.
func (o Outcome) Code() Code {
	return o.code
}

// Message is empty for valid outcomes.
func (o Outcome) Message() string {
	return o.message
}

func (o Outcome) String() string {
	if o.IsValid() {
		return "valid"
	}
	return string(o.code) + ": " + o.message
}

type outcomeJSON struct {
	Valid   bool   `json:"valid"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{Valid: o.IsValid(), Code: o.code, Message: o.message})
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.code, o.message = raw.Code, raw.Message
	return nil
}
