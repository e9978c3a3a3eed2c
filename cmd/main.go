package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-import-service/internal/clients"
	"catalog-import-service/internal/config"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/handlers"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
	"catalog-import-service/internal/storage"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	db, err := config.InitDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	redisClient := connectRedis(cfg, logger)
	productsRepo := repository.NewProductsRepository(db, redisClient)
	categories := newCategoryDirectory(cfg, db, redisClient, logger)

	var publisher services.EventPublisher
	if cfg.NATSURL != "" {
		eventsPublisher, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher (continuing without event publishing)")
		} else {
			logger.Info("Events publisher initialized (NATS connected)")
			publisher = eventsPublisher
			defer eventsPublisher.Close()
		}
	} else {
		logger.Info("NATS_URL not set, skipping event publishing initialization")
	}

	var objects services.ObjectStore
	objectStore, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("Object store unavailable, image uploads will fail")
	} else {
		logger.WithField("provider", cfg.Storage.Provider).Info("Object store initialized")
		objects = objectStore
		defer objectStore.Close()
	}

	importService := services.NewImportService(categories, productsRepo, publisher, services.ImportSettings{
		ParseTimeout:      cfg.ParseTimeout,
		ValidationTimeout: cfg.ValidationTimeout,
		CommitTimeout:     cfg.CommitTimeout,
	}, logger)
	attachmentService := services.NewAttachmentService(productsRepo, objects, publisher, services.AttachmentSettings{
		Concurrency:   cfg.UploadConcurrency,
		UploadTimeout: cfg.UploadTimeout,
		UploadRetries: cfg.UploadRetries,
		RetryBackoff:  cfg.UploadBackoff,
	}, logger)
	catalogService := services.NewCatalogService(productsRepo, cfg.DefaultPageSize, cfg.MaxPageSize)

	importHandler := handlers.NewImportHandler(importService, cfg.MaxUploadBytes)
	productsHandler := handlers.NewProductsHandler(catalogService, attachmentService, cfg.MaxImageBytes)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)

	api := router.Group("/api/v1")
	api.Use(middleware.DevelopmentAuthMiddleware())
	api.Use(middleware.TenantMiddleware())
	{
		products := api.Group("/products")
		products.GET("", productsHandler.GetProducts)
		products.GET("/:id", productsHandler.GetProduct)
		products.POST("/:id/images", productsHandler.AttachImages)

		products.GET("/import/template", importHandler.GetImportTemplate)
		products.POST("/import/validate", importHandler.ValidateImport)
		products.POST("/import", importHandler.CommitImport)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Catalog import service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down catalog-import-service...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CommitTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shut down")
	}

	logger.Info("Catalog import service stopped")
}

func connectRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, falling back to localhost")
		redisOpts = &redis.Options{Addr: "localhost:6379"}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis (caching will be disabled)")
	} else {
		logger.Info("Redis connected successfully")
	}
	return redisClient
}

func newCategoryDirectory(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *logrus.Logger) services.CategoryDirectory {
	if cfg.CategorySource == config.CategorySourceService {
		logger.WithField("url", cfg.CategoriesServiceURL).Info("Resolving categories through categories-service")
		return clients.NewCategoriesClient(cfg.CategoriesServiceURL, 10*time.Second)
	}
	return repository.NewCategoryRepository(db, redisClient)
}
