// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"shopping-assistant/internal/common/config"
	apperrors "shopping-assistant/internal/common/errors"

	"github.com/lib/pq"
)

// PostgresClient owns the storefront connection pool shared by the catalog, signal and order queries.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	connector, err := pq.NewConnector(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	// catalog reads are short; recycle often so failovers are picked up
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("postgres ping failed: %w", err))
	}
	return nil
}

// CheckSchema reports the tables from want that are missing in the public schema.
func (c *PostgresClient) CheckSchema(ctx context.Context, want ...string) error {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)`, pq.Array(want))
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(want))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("schema check failed: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}

	var missing []string
	for _, table := range want {
		if !found[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
