package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/foxxcyber/property-listing/internal/catalog"
	"github.com/foxxcyber/property-listing/internal/config"
	"github.com/foxxcyber/property-listing/internal/database"
	"github.com/foxxcyber/property-listing/internal/logging"
	"github.com/foxxcyber/property-listing/internal/services"
)

func main() {
	// Command line flags
	dryRun := flag.Bool("dry-run", false, "Validate the catalog without writing anywhere")
	localFile := flag.String("file", "", "Seed from a snapshot file instead of the embedded dataset")
	toPostgres := flag.Bool("postgres", true, "Replace the locations and properties tables")
	toS3 := flag.Bool("s3", false, "Upload the catalog snapshot to object storage")
	flag.Parse()

	// Load .env
	godotenv.Load()

	cfg := config.Load()
	log := logging.New(logging.Config{
		Level: logging.ParseLevel(cfg.LogLevel),
		Color: cfg.LogColor,
	})

	if err := run(cfg, log, *localFile, *dryRun, *toPostgres, *toS3); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, file string, dryRun, toPostgres, toS3 bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var cat *catalog.Catalog
	var err error
	if file != "" {
		log.Info("reading catalog file", "path", file)
		cat, err = catalog.LoadFile(file)
	} else {
		cat, err = catalog.LoadEmbedded()
	}
	if err != nil {
		return err
	}

	log.Info("catalog validated", "locations", len(cat.Locations), "properties", len(cat.Properties))

	if dryRun {
		log.Info("dry run, nothing written")
		return nil
	}

	if toPostgres {
		if err := seedPostgres(ctx, cfg, log, cat); err != nil {
			return err
		}
	}

	if toS3 {
		if err := uploadSnapshot(ctx, cfg, log, cat); err != nil {
			return err
		}
	}

	return nil
}

func seedPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger, cat *catalog.Catalog) error {
	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.ReplaceLocations(ctx, cat.Locations); err != nil {
		return fmt.Errorf("failed to seed locations: %w", err)
	}
	if err := db.ReplaceProperties(ctx, cat.Properties); err != nil {
		return fmt.Errorf("failed to seed properties: %w", err)
	}

	log.Info("postgres seeded", "locations", len(cat.Locations), "properties", len(cat.Properties))
	return nil
}

func uploadSnapshot(ctx context.Context, cfg *config.Config, log *slog.Logger, cat *catalog.Catalog) error {
	if !cfg.S3Configured() {
		return fmt.Errorf("S3 credentials are not configured")
	}

	storage, err := services.NewStorageService(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL)
	if err != nil {
		return err
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return err
	}
	log.Info("uploading snapshot", "bucket", storage.GetBucketName(), "key", cfg.S3CatalogKey)

	data, err := cat.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to render snapshot: %w", err)
	}

	info, err := storage.PutSnapshot(ctx, cfg.S3CatalogKey, data)
	if err != nil {
		return err
	}

	log.Info("snapshot uploaded", "bucket", info.Bucket, "key", info.Key, "size", info.Size, "etag", info.ETag)
	return nil
}
