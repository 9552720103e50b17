// Package store persists registrations. Every backend enforces one record
// per e-mail address (compared case-insensitively) and reports a taken
// address as sentinel.ErrConflict. Backends that talk to a server report
// connectivity failures as sentinel.ErrUnavailable.
package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"regform/internal/registration/models"
	"regform/pkg/platform/sentinel"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (models.Registration, error) {
	var reg models.Registration
	err := row.Scan(
		&reg.ID,
		&reg.FirstName,
		&reg.LastName,
		&reg.Email,
		&reg.BirthDate,
		&reg.City,
		&reg.PostalCode,
		&reg.Timestamp,
	)
	if err != nil {
		return models.Registration{}, err
	}
	reg.Timestamp = reg.Timestamp.UTC()
	return reg, nil
}

// wrapErr annotates err with op and marks connectivity failures as
// sentinel.ErrUnavailable.
func wrapErr(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func conflict(op, email string) error {
	return fmt.Errorf("%s: email %q: %w", op, email, sentinel.ErrConflict)
}
