package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"shop-admin/migrations"
)

// Migrate runs a goose command (up, down, status, version, redo, reset,
// up-to, down-to) against the schema embedded in the binary.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	switch command {
	case "up-to", "down-to":
		if len(args) != 1 {
			return fmt.Errorf("goose %s requires a target version", command)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, sqlDB, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateUp applies all pending migrations under the migration lock.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	release, err := LockMigrations(ctx, pool)
	if err != nil {
		return err
	}
	defer release()
	return Migrate(ctx, pool, "up")
}

const migrationLockKey = 7462839

// ErrMigrationLocked is returned when another migrator holds the advisory lock.
var ErrMigrationLocked = errors.New("another migrator is currently running")

// LockMigrations takes a session-level advisory lock so concurrent migrators
// (e.g. two servers with MIGRATE_ON_START) do not race. The returned func
// releases the lock and the connection.
func LockMigrations(ctx context.Context, pool *pgxpool.Pool) (func(), error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockKey).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, ErrMigrationLocked
	}

	return func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
		conn.Release()
	}, nil
}
