package registration

import "regform/internal/registration/models"

// savedMsg carries a persistence outcome back into the update loop.
type savedMsg struct {
	token uint64
	saved models.Registration
	err   error
}
