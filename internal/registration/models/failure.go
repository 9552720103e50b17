package models

import (
	"errors"

	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/sentinel"
)

// FailureKind classifies why a save was refused.
type FailureKind string

const (
	FailureDuplicate         FailureKind = "DUPLICATE"
	FailureServerUnavailable FailureKind = "SERVER_UNAVAILABLE"
	FailureUnknown           FailureKind = "UNKNOWN"
)

var failureMessages = map[FailureKind]string{
	FailureDuplicate:         "Email already exists",
	FailureServerUnavailable: "Server is down. Please try again later.",
	FailureUnknown:           "Failed to save user to API",
}

// Message is the user-facing submit error for the kind.
func (k FailureKind) Message() string {
	if msg, ok := failureMessages[k]; ok {
		return msg
	}
	return failureMessages[FailureUnknown]
}

// Classify maps a persistence error to a FailureKind. Stores report
// sentinel errors, services report domain codes; both are recognised.
// Anything else, including network and decoding errors, is UNKNOWN.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeConflict):
		return FailureDuplicate
	case errors.Is(err, sentinel.ErrUnavailable), dErrors.HasCode(err, dErrors.CodeUnavailable):
		return FailureServerUnavailable
	default:
		return FailureUnknown
	}
}
