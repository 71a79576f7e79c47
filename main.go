package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mentorbook/booking-app/booking"
	"github.com/mentorbook/booking-app/config"
	"github.com/mentorbook/booking-app/controllers"
	"github.com/mentorbook/booking-app/cron"
	"github.com/mentorbook/booking-app/db"
	"github.com/mentorbook/booking-app/redis"
	"github.com/mentorbook/booking-app/routes"
	"github.com/mentorbook/booking-app/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger := newLogger(cfg.Environment)
	defer logger.Sync()

	db.Init(cfg.DatabaseURL)
	db.Migrate()
	redis.InitRedis(cfg.RedisAddr)

	// The booking engine: cache + storage + coordinator, then the facade.
	cache := booking.NewCache()
	storage := booking.NewGormStorage(db.DB, redis.Client, logger)
	coord := booking.NewCoordinator(storage, cache, redis.Client, logger, cfg.SyncMaxRetries, cfg.RefreshInterval)
	engine := booking.NewEngine(storage, cache, coord, logger, cfg.MinLeadTime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the cache before serving, then keep it reconciled.
	if err := engine.Refresh(ctx); err != nil {
		logger.Warn("initial refresh failed, starting with empty cache", zap.Error(err))
	}
	go coord.Run(ctx)

	mailer := utils.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass)
	controllers.Setup(engine, mailer, cfg, logger)

	jobs := cron.New(engine, mailer, logger)
	scheduler, err := jobs.Start()
	if err != nil {
		log.Fatal("Failed to start cron jobs: ", err)
	}

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Hello, World!")
	})
	routes.SetupAuthRoutes(app)
	routes.SetupAvailabilityRoutes(app, cfg.JWTSecret)
	routes.SetupAppointmentRoutes(app, cfg.JWTSecret)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		scheduler.Stop()
		if err := app.Shutdown(); err != nil {
			logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Server stopped: ", err)
	}
}

func newLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.OutputPaths = []string{"stdout"}

	logger, err := config.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}
