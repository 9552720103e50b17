package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"regform/internal/registration/models"
	"regform/pkg/email"
)

const (
	// DefaultTable is the table registrations are written to.
	DefaultTable = "registrations"

	pgUniqueViolation = "23505"
)

// PostgresStore persists registrations in PostgreSQL.
// This store is pure I/O; validation happens before records reach it.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTable overrides the table name.
func WithTable(name string) PostgresOption {
	return func(s *PostgresStore) {
		if name != "" {
			s.table = name
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the registrations table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			first_name  TEXT NOT NULL,
			last_name   TEXT NOT NULL,
			email       TEXT NOT NULL,
			email_key   TEXT NOT NULL UNIQUE,
			birth_date  DATE NOT NULL,
			city        TEXT NOT NULL,
			postal_code TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)
	`, pq.QuoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return wrapErr("ensure registrations schema", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, reg *models.Registration) error {
	id := reg.ID
	if id == "" {
		id = uuid.NewString()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, first_name, last_name, email, email_key, birth_date, city, postal_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, pq.QuoteIdentifier(s.table))
	_, err := s.db.ExecContext(ctx, query,
		id,
		reg.FirstName,
		reg.LastName,
		reg.Email,
		email.Normalize(reg.Email),
		reg.BirthDate,
		reg.City,
		reg.PostalCode,
		reg.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return conflict("create registration", reg.Email)
		}
		return wrapErr("create registration", err)
	}
	reg.ID = id
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Registration, error) {
	query := fmt.Sprintf(`
		SELECT id, first_name, last_name, email, birth_date, city, postal_code, created_at
		FROM %s
		ORDER BY created_at, id
	`, pq.QuoteIdentifier(s.table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("list registrations", err)
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
		return nil, wrapErr("list registrations", err)
	}
	return out, nil
}
