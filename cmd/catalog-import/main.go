// Command catalog-import validates and commits product import files from
// the shell, using the same database and category source as the service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-import-service/internal/clients"
	"catalog-import-service/internal/config"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stderr)

	root := newRootCmd(log, connectImporter)
	if err := root.ExecuteContext(ctx); err != nil {
		code := exitFailure
		var coded *exitError
		if errors.As(err, &coded) {
			code = coded.code
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(code)
	}
}

// connectImporter wires the import service against the configured database.
func connectImporter(_ context.Context, log *logrus.Logger) (services.Importer, func(), error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using system environment variables")
	}
	cfg := config.Load()
	if cfg.IsProduction() {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := config.InitDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	db.Logger = db.Logger.LogMode(logger.Silent)

	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		opts.Password = secrets.GetRedisPassword()
		redisClient = redis.NewClient(opts)
	}

	var categories services.CategoryDirectory = repository.NewCategoryRepository(db, redisClient)
	if cfg.CategorySource == config.CategorySourceService {
		categories = clients.NewCategoriesClient(cfg.CategoriesServiceURL, 10*time.Second)
	}

	var publisher services.EventPublisher
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		if eventsPublisher, err = events.NewPublisher(cfg.NATSURL, log); err != nil {
			log.WithError(err).Warn("Continuing without event publishing")
		} else {
			publisher = eventsPublisher
		}
	}

	svc := services.NewImportService(categories, repository.NewProductsRepository(db, redisClient), publisher, services.ImportSettings{
		ParseTimeout:      cfg.ParseTimeout,
		ValidationTimeout: cfg.ValidationTimeout,
		CommitTimeout:     cfg.CommitTimeout,
	}, log)

	cleanup := func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return svc, cleanup, nil
}
