package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote adapters return
// these (wrapped with %w) and callers classify them with errors.Is:
//   - ErrNotFound: record or session does not exist
//   - ErrConflict: a unique constraint (registration e-mail) is already taken
//   - ErrUnavailable: the backing store or remote API cannot be reached
//   - ErrMalformed: a collaborator answered with a payload we cannot decode
//
// Field validation failures are not errors; see internal/validation.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrMalformed   = errors.New("malformed response")
)
