// migrate applies or inspects the embedded schema migrations.
//
// Usage: go run ./cmd/migrate [up|down|status|version|redo|reset|up-to N|down-to N]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"shop-admin/internal/config"
	"shop-admin/internal/db"
	"shop-admin/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		ServiceName: "shop-admin-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      "console",
		Output:      os.Stderr,
	})

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg.DB.URL, command, args); err != nil {
		if errors.Is(err, db.ErrMigrationLocked) {
			log.Warn(ctx, err.Error())
		} else {
			log.Error(ctx, "migration failed", err)
		}
		os.Exit(1)
	}
	log.Info(log.WithField(ctx, "command", command), "migrations processed")
}

func run(ctx context.Context, url, command string, args []string) error {
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	release, err := db.LockMigrations(ctx, pool)
	if err != nil {
		return err
	}
	defer release()

	return db.Migrate(ctx, pool, command, args...)
}
