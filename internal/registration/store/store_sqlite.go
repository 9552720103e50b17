package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"regform/internal/registration/models"
	"regform/pkg/email"
)

// SQLiteStore persists registrations in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureSchema creates the registrations table when it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS registrations (
			id          TEXT PRIMARY KEY,
			first_name  TEXT NOT NULL,
			last_name   TEXT NOT NULL,
			email       TEXT NOT NULL,
			email_key   TEXT NOT NULL UNIQUE,
			birth_date  TEXT NOT NULL,
			city        TEXT NOT NULL,
			postal_code TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure registrations schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, reg *models.Registration) error {
	id := reg.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (id, first_name, last_name, email, email_key, birth_date, city, postal_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		reg.FirstName,
		reg.LastName,
		reg.Email,
		email.Normalize(reg.Email),
		reg.BirthDate,
		reg.City,
		reg.PostalCode,
		reg.Timestamp.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return conflict("create registration", reg.Email)
		}
		return fmt.Errorf("create registration: %w", err)
	}
	reg.ID = id
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, birth_date, city, postal_code, created_at
		FROM registrations
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return out, nil
}
