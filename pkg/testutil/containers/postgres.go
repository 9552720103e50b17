//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"regform/internal/platform/postgres"
)

// PostgresContainer is a disposable PostgreSQL opened through the same
// pool setup the server uses.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	URL       string
	DB        *sql.DB
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("regform"),
		tcpostgres.WithUsername("regform"),
		tcpostgres.WithPassword("regform"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres connection string: %v", err)
	}
	db, err := postgres.Open(ctx, url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to postgres: %v", err)
	}
	return &PostgresContainer{Container: container, URL: url, DB: db}
}

// Truncate empties the registration tables that exist, so suites sharing
// the container start clean.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	var existing []string
	for _, table := range tables {
		var ok bool
		if err := p.DB.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&ok); err != nil {
			return fmt.Errorf("look up table %s: %w", table, err)
		}
		if ok {
			existing = append(existing, pq.QuoteIdentifier(table))
		}
	}
	if len(existing) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(existing, ", "))
	return err
}
