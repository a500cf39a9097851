package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/foxxcyber/property-listing/internal/catalog"
	"github.com/foxxcyber/property-listing/internal/config"
	"github.com/foxxcyber/property-listing/internal/database"
	"github.com/foxxcyber/property-listing/internal/handlers"
	"github.com/foxxcyber/property-listing/internal/logging"
	"github.com/foxxcyber/property-listing/internal/middleware"
	"github.com/foxxcyber/property-listing/internal/services"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	cfg := config.Load()

	log := logging.New(logging.Config{
		Level: logging.ParseLevel(cfg.LogLevel),
		JSON:  cfg.IsProduction(),
		Color: cfg.LogColor,
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *database.DB
	if cfg.NeedsDatabase() {
		var err error
		db, err = database.Connect(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	cat, err := loadCatalog(ctx, cfg, db)
	if err != nil {
		return err
	}
	log.Info("catalog loaded",
		"source", cfg.CatalogSource,
		"locations", len(cat.Locations),
		"properties", len(cat.Properties),
	)

	store, closeStore, err := openFavoritesStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("favorites store ready", "store", cfg.FavoritesStore)

	registry := services.NewFavoritesRegistry(store, log)
	defer registry.Close()

	app := newApp(cfg, handlers.New(cat, registry, log))

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	registry.Close()
	return app.ShutdownWithTimeout(10 * time.Second)
}

func newApp(cfg *config.Config, h *handlers.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers.Register(app, h, middleware.ClientID(cfg.ClientCookieName, cfg.IsProduction()))

	return app
}

func loadCatalog(ctx context.Context, cfg *config.Config, db *database.DB) (*catalog.Catalog, error) {
	switch cfg.CatalogSource {
	case config.CatalogEmbedded:
		return catalog.LoadEmbedded()
	case config.CatalogFile:
		if cfg.CatalogFile == "" {
			return nil, fmt.Errorf("CATALOG_FILE is required for the file catalog source")
		}
		return catalog.LoadFile(cfg.CatalogFile)
	case config.CatalogS3:
		storage, err := services.NewStorageService(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL)
		if err != nil {
			return nil, err
		}
		return catalog.LoadObject(ctx, storage, cfg.S3CatalogKey)
	case config.CatalogPostgres:
		return catalog.LoadRepository(ctx, db)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.CatalogSource)
	}
}

func openFavoritesStore(ctx context.Context, cfg *config.Config, db *database.DB, log *slog.Logger) (services.FavoritesStore, func(), error) {
	switch cfg.FavoritesStore {
	case config.FavoritesMemory:
		return services.NewMemoryFavoritesStore(), func() {}, nil
	case config.FavoritesRedis:
		client, err := services.ConnectRedis(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		store := services.NewRedisFavoritesStore(client, log)
		return store, closeRedis(store, client, log), nil
	case config.FavoritesPostgres:
		store := database.NewClientStateStore(db)
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown favorites store %q", cfg.FavoritesStore)
	}
}

func closeRedis(store *services.RedisFavoritesStore, client *redis.Client, log *slog.Logger) func() {
	return func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close redis subscription", "error", err)
		}
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
}
