package audit

import "time"

// Action names what happened to a registration.
type Action string

const (
	ActionRegistrationCreated Action = "registration_created"
	ActionRegistrationRefused Action = "registration_refused"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Action         Action    `json:"action"`
	RegistrationID string    `json:"registration_id,omitempty"`
	// Email is the registrant address; events never carry other personal fields.
	Email     string `json:"email,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// SessionID is set when the save came from a hosted form session.
	SessionID string `json:"session_id,omitempty"`
}
