package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	webAdapter "shop-admin/internal/adapters/web"
	"shop-admin/internal/ai"
	"shop-admin/internal/app"
	"shop-admin/internal/config"
	"shop-admin/internal/core"
	"shop-admin/internal/db"
	"shop-admin/internal/drafts"
	"shop-admin/internal/events"
	"shop-admin/internal/logger"
	"shop-admin/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "shop-admin-server",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required to run the server")
	}
	tokens, err := webAdapter.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if cfg.DB.MigrateOnStart {
		if err := db.MigrateUp(ctx, pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info(ctx, "migrations applied")
	}

	phone, err := cfg.Orders.PhoneRegexp()
	if err != nil {
		return err
	}
	history := core.NewHistoryLog(pool)
	inventoryService := core.NewInventoryService(pool, history)
	orderService := core.NewOrderService(pool, inventoryService, phone)

	var extractor ai.OrderExtractor
	if cfg.OpenAI.Enabled() {
		extractor = ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Warn(ctx, "OPENAI_API_KEY is not set; AI order extraction disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	var draftStore drafts.Store
	if cfg.Drafts.RedisURL != "" {
		rs, err := drafts.NewRedisStore(ctx, cfg.Drafts.RedisURL, cfg.Drafts.TTL)
		if err != nil {
			return err
		}
		defer rs.Close()
		draftStore = rs
		log.Info(ctx, "order drafts stored in redis")
	} else {
		ms := drafts.NewMemoryStore(cfg.Drafts.TTL)
		ms.StartPurge(gctx, time.Minute)
		draftStore = ms
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.RabbitMQURL != "" {
		rp, err := events.DialRabbitMQ(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher = rp
		log.Info(log.WithField(ctx, "exchange", cfg.Events.Exchange), "publishing order events")
	}

	m := metrics.New()
	svc := app.NewAppService(app.Dependencies{
		DB:        pool,
		Inventory: inventoryService,
		Orders:    orderService,
		Extractor: extractor,
		Drafts:    draftStore,
		Events:    publisher,
		Metrics:   m,
		Logger:    log,
	})

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.App.Origins(),
		Tokens:         tokens,
		Metrics:        m,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info(log.WithField(ctx, "port", cfg.App.Port), "server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
