package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/sms-gateway/internal/config"
	"github.com/kursadbilgin/sms-gateway/internal/gateway"
	"github.com/kursadbilgin/sms-gateway/internal/handler"
	"github.com/kursadbilgin/sms-gateway/internal/infra/postgresql"
	"github.com/kursadbilgin/sms-gateway/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/sms-gateway/internal/infra/redis"
	"github.com/kursadbilgin/sms-gateway/internal/observability"
	"github.com/kursadbilgin/sms-gateway/internal/ratelimit"
	"github.com/kursadbilgin/sms-gateway/internal/repository"
	"github.com/kursadbilgin/sms-gateway/internal/service"
	"github.com/kursadbilgin/sms-gateway/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLoggerWithFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("sms-gateway stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	gw, err := gateway.NewTwilioGateway(cfg.Gateway())
	if err != nil {
		return fmt.Errorf("gateway initialization failed: %w", err)
	}

	var (
		sqlDB      *sql.DB
		dispatches repository.DispatchRepository = repository.NopDispatchRepo{}
	)
	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()

		dispatches = repository.NewGormDispatchRepo(db)
	} else {
		logger.Warn("DATABASE_DSN not set, dispatch audit disabled")
	}

	var (
		rdb     *goredis.Client
		limiter ratelimit.RateLimiter
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			return fmt.Errorf("rate limiter initialization failed: %w", err)
		}
	} else {
		logger.Info("REDIS_URL not set, using in-process rate limiter")
		limiter = ratelimit.NewLocalRateLimiter(cfg.RateLimitPerSec)
	}

	metrics := observability.NewMetrics()

	smsService, err := service.NewSMSService(gw, cfg.Gateway(), dispatches, limiter, logger)
	if err != nil {
		return fmt.Errorf("sms service initialization failed: %w", err)
	}
	smsService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "sms-gateway",
		ErrorHandler: transport.ErrorHandler(logger),
		// Provider calls may take up to the gateway's total timeout.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: gateway.DefaultRequestTimeout + 5*time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterSMSRoutes(app, smsService); err != nil {
		return fmt.Errorf("route registration failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("sms-gateway api started",
			zap.Int("port", cfg.APIPort),
			zap.String("from", cfg.TwilioFrom),
		)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down sms-gateway api")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
