// Package database resets and inspects the Postgres schema used by scenarios.
// Every call opens its own connection; scenarios run rarely enough that a
// pool would only hold sockets open between them.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"expenses/logger"
)

const truncateAll = `DO $$
DECLARE
   table_name text;
BEGIN
   FOR table_name IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public')
   LOOP
      EXECUTE 'TRUNCATE TABLE public.' || quote_ident(table_name) || ' CASCADE';
   END LOOP;
END $$;`

// Cleaner truncates tables and runs read queries against one DSN.
type Cleaner struct {
	dsn string
}

func NewCleaner(dsn string) *Cleaner { return &Cleaner{dsn: dsn} }

func (c *Cleaner) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return conn, nil
}

// Truncate empties every table in the public schema. Connection and
// statement failures are returned as is.
func (c *Cleaner) Truncate(ctx context.Context) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	if _, err := conn.Exec(ctx, truncateAll); err != nil {
		return fmt.Errorf("truncate public tables: %w", err)
	}
	logger.Debug("database truncated")
	return nil
}

// Exec runs a single statement, e.g. to seed rows for a scenario.
func (c *Cleaner) Exec(ctx context.Context, sql string, args ...any) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	if _, err := conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Query maps every row of sql onto T by column name (`db` struct tags).
func Query[T any](ctx context.Context, c *Cleaner, sql string, args ...any) ([]T, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return out, nil
}
