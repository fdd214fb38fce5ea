package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"shop-admin/internal/adapters/cli"
	"shop-admin/internal/adapters/repl"
	webAdapter "shop-admin/internal/adapters/web"
	"shop-admin/internal/ai"
	"shop-admin/internal/app"
	"shop-admin/internal/config"
	"shop-admin/internal/core"
	"shop-admin/internal/db"
	"shop-admin/internal/drafts"
	"shop-admin/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// operator tooling logs to stderr in console form so stdout stays clean
	log := logger.New(logger.Options{
		ServiceName: "shop-admin-cli",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      "console",
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		log.Error(ctx, "unable to connect to database", err)
		os.Exit(1)
	}
	defer pool.Close()

	phone, err := cfg.Orders.PhoneRegexp()
	if err != nil {
		log.Error(ctx, "invalid configuration", err)
		os.Exit(1)
	}
	history := core.NewHistoryLog(pool)
	inventoryService := core.NewInventoryService(pool, history)
	orderService := core.NewOrderService(pool, inventoryService, phone)

	var extractor ai.OrderExtractor
	if cfg.OpenAI.Enabled() {
		extractor = ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	// drafts must outlive this process when the operator runs extract and
	// confirm as separate commands, which needs redis
	var draftStore drafts.Store = drafts.NewMemoryStore(cfg.Drafts.TTL)
	if cfg.Drafts.RedisURL != "" {
		rs, err := drafts.NewRedisStore(ctx, cfg.Drafts.RedisURL, cfg.Drafts.TTL)
		if err != nil {
			log.Error(ctx, "unable to connect to redis", err)
			os.Exit(1)
		}
		defer rs.Close()
		draftStore = rs
	}

	svc := app.NewAppService(app.Dependencies{
		DB:        pool,
		Inventory: inventoryService,
		Orders:    orderService,
		Extractor: extractor,
		Drafts:    draftStore,
		Logger:    log,
	})

	var tokens cli.TokenSigner
	if cfg.JWT.Secret != "" {
		issuer, err := webAdapter.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
		if err != nil {
			log.Error(ctx, "invalid JWT configuration", err)
			os.Exit(1)
		}
		tokens = issuer
	}

	runner := cli.New(svc, tokens, os.Stdout, os.Stdin)

	if len(os.Args) < 2 {
		repl.Run(ctx, svc, runner, bufio.NewReader(os.Stdin), os.Stdout)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := runner.Run(cmdCtx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
