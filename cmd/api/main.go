package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/RyadPasha/http-retryer/internal/config"
	"github.com/RyadPasha/http-retryer/internal/handler"
	"github.com/RyadPasha/http-retryer/internal/infra/postgresql"
	"github.com/RyadPasha/http-retryer/internal/infra/postgresql/migrations"
	infraredis "github.com/RyadPasha/http-retryer/internal/infra/redis"
	"github.com/RyadPasha/http-retryer/internal/observability"
	"github.com/RyadPasha/http-retryer/internal/receiver"
	"github.com/RyadPasha/http-retryer/internal/repository"
	"github.com/RyadPasha/http-retryer/internal/service"
	"github.com/RyadPasha/http-retryer/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	}

	metrics := observability.NewMetrics()
	ledger := repository.NewGormAttemptLedger(db)

	sender := receiver.NewHTTPSender(cfg.Timeout())
	dispatcher, err := receiver.NewFailoverDispatcher(sender, cfg.ReceiverURLs, logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	engine, err := service.NewDeliveryService(dispatcher, ledger, cfg.MaxAttempts, cfg.Origin, logger)
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}
	engine.SetMetrics(metrics)

	var locker service.RecoveryLocker
	if rdb != nil {
		lock, lockErr := infraredis.NewRecoveryLock(rdb)
		if lockErr != nil {
			logger.Fatal("recovery lock initialization failed", zap.Error(lockErr))
		}
		locker = lock
	}

	recovery, err := service.NewRecoveryScan(ledger, engine, locker, logger)
	if err != nil {
		logger.Fatal("recovery scan initialization failed", zap.Error(err))
	}
	recovery.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterDeliveryRoutes(app, engine, ledger); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RecoveryEnabled {
		g.Go(func() error {
			// Recovery failures surface in logs, never as process exit:
			// fresh deliveries keep flowing regardless.
			if err := recovery.Run(gctx); err != nil && gctx.Err() == nil {
				logger.Error("recovery scan failed", zap.Error(err))
			}
			return nil
		})
	} else {
		logger.Info("startup recovery scan disabled by config")
	}

	g.Go(func() error {
		logger.Info("http-retryer api started",
			zap.Int("port", cfg.APIPort),
			zap.Strings("receivers", cfg.ReceiverURLs),
			zap.Int("maxAttempts", cfg.MaxAttempts),
		)
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}

		// In-flight sequences run to a terminal state; anything cut short
		// by process exit is the recovery scan's job next boot.
		engine.Wait()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
