package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/database"
	"github.com/localnerve/minisitedb/internal/handlers"
	"github.com/localnerve/minisitedb/internal/logging"
	"github.com/localnerve/minisitedb/internal/services"
	"github.com/rs/zerolog/log"

	_ "github.com/localnerve/minisitedb/docs/api" // Swagger docs
)

// @title MinisiteDB API
// @version 1.0.0
// @description Versioned content and publish state for minisites
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/minisitedb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Init("production", "info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Env, cfg.LogLevel)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("db_type", cfg.DBType).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	cache := newPointerCache(cfg)
	coordinator := services.NewCoordinator(db, cache)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: cfg.Env == "production",
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New(logging.ServiceName)
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.Register(app, cfg,
		&handlers.MinisiteHandler{Coordinator: coordinator},
		&handlers.HealthHandler{Cfg: cfg, DB: db, Cache: cache},
	)

	// 404 handler
	app.Use(handlers.NotFound)

	if cfg.AuthRequired {
		log.Info().Str("authz_url", cfg.AuthzURL).Msg("Authorizer will be initialized on first authenticated request")
	} else {
		log.Warn().Msg("AUTH_REQUIRED is false, actors are taken from the X-Actor-Id header")
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info().Msg("Gracefully shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	log.Info().Str("port", cfg.Port).Msg("Starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	log.Info().Msg("Server stopped")
}

// newPointerCache picks redis when REDIS_URL is set, otherwise an
// in-process cache.
func newPointerCache(cfg *config.Config) services.PointerCache {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = services.DefaultCacheTTL
	}

	if cfg.RedisURL != "" {
		client, err := services.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Invalid REDIS_URL, falling back to memory cache")
			return services.NewMemoryPointerCache(ttl)
		}
		cache := services.NewRedisPointerCache(client, ttl)
		log.Info().Bool("available", cache.IsAvailable()).Msg("Using redis pointer cache")
		return cache
	}

	log.Info().Dur("ttl", ttl).Msg("Using memory pointer cache")
	return services.NewMemoryPointerCache(ttl)
}
