package main

import (
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"

	"github.com/Netflix/go-env"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/RyadPasha/http-retryer/internal/observability"
)

// mockreceiver is a deliberately flaky receiver endpoint for manual testing
// of failover and retry behavior. It fails the first FAIL_COUNT requests
// with FAIL_STATUS, then fails FAIL_RATE percent of the rest.
type mockConfig struct {
	Port       int    `env:"PORT,default=9000"`
	FailCount  int64  `env:"FAIL_COUNT,default=0"`
	FailStatus int    `env:"FAIL_STATUS,default=503"`
	FailRate   int    `env:"FAIL_RATE,default=0"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`
}

func main() {
	var cfg mockConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	var seen atomic.Int64

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/receive", func(c *fiber.Ctx) error {
		n := seen.Add(1)

		fail := n <= cfg.FailCount
		if !fail && cfg.FailRate > 0 {
			fail = rand.Intn(100) < cfg.FailRate
		}

		if fail {
			logger.Info("rejecting delivery",
				zap.Int64("request", n),
				zap.Int("status", cfg.FailStatus),
			)
			return c.Status(cfg.FailStatus).JSON(fiber.Map{
				"error": "simulated failure",
			})
		}

		logger.Info("accepting delivery",
			zap.Int64("request", n),
			zap.Int("bytes", len(c.Body())),
		)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ok": true,
		})
	})

	logger.Info("mock receiver started",
		zap.Int("port", cfg.Port),
		zap.Int64("failCount", cfg.FailCount),
		zap.Int("failRate", cfg.FailRate),
	)

	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Fatal("mock receiver exited", zap.Error(err))
	}
}
