package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pricing-service/internal/clients"
	"pricing-service/internal/clients/wildberries"
	"pricing-service/internal/config"
	"pricing-service/internal/events"
	"pricing-service/internal/handlers"
	"pricing-service/internal/middleware"
	"pricing-service/internal/models"
	"pricing-service/internal/repository"
	"pricing-service/internal/services"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// @title Pricing Service API
// @version 1.0.0
// @description Safe bulk price change engine with risk classification for Tesseract Hub
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8098
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}

	// Run database migrations
	logger.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.Seller{},
		&models.Product{},
		&models.PriceSafetySettings{},
		&models.PriceChangeBatch{},
		&models.PriceChangeItem{},
		&models.PriceApplyLog{},
		&models.PriceHistory{},
		&models.SuspiciousPriceChange{},
	); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Initialize Redis (product lookups are cached; the service degrades
	// gracefully without it)
	var redisClient *redis.Client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warnf("Invalid REDIS_URL, product caching disabled: %v", err)
	} else {
		redisOpts.Password = secrets.GetRedisPassword()
		redisClient = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("Redis not reachable, product caching disabled: %v", err)
			redisClient = nil
		}
		cancel()
	}

	// Initialize repositories
	batchRepo := repository.NewBatchRepository(db)
	productsRepo := repository.NewProductsRepository(db, redisClient)
	sellersRepo := repository.NewSellersRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	monitorRepo := repository.NewMonitorRepository(db)

	// Initialize event publisher (optional - service works without NATS)
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(logger)
		if err != nil {
			logger.Warnf("Failed to initialize event publisher: %v. Events will not be published.", err)
		} else {
			logger.Info("Event publisher initialized")
		}
	} else {
		logger.Info("NATS_URL not configured, event publishing disabled")
	}

	// Each seller talks to Wildberries with their own API key
	clientFor := func(seller *models.Seller) clients.PricingClient {
		return wildberries.NewClient(wildberries.Config{
			APIKey:  seller.WBApiKey,
			Sandbox: cfg.WBSandbox,
		})
	}

	// Initialize services
	settingsService := services.NewSettingsService(settingsRepo, logger)
	monitorService := services.NewMonitorService(monitorRepo, settingsService, logger)

	var priceEvents services.PriceEventPublisher
	if publisher != nil {
		priceEvents = publisher
	}
	batchService := services.NewBatchService(batchRepo, productsRepo, sellersRepo,
		settingsService, clientFor, priceEvents, logger)

	// Initialize handlers
	batchHandler := handlers.NewBatchHandler(batchService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	monitorHandler := handlers.NewMonitorHandler(monitorService)
	productsHandler := handlers.NewProductsHandler(productsRepo)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// Protected API routes
	api := router.Group("/api/v1")

	// Authentication middleware using Istio JWT claims
	// Istio validates JWT and injects x-jwt-claim-* headers
	api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
		RequireAuth:        true,
		AllowLegacyHeaders: false,
		SkipPaths:          []string{"/health", "/ready", "/metrics", "/swagger"},
	}))
	api.Use(middleware.TenantMiddleware())

	// Price batch endpoints
	{
		api.POST("/price-batches", batchHandler.CreateBatch)
		api.POST("/price-batches/preview", batchHandler.PreviewChanges)
		api.GET("/price-batches", batchHandler.ListBatches)
		api.GET("/price-batches/:id", batchHandler.GetBatch)
		api.GET("/price-batches/:id/summary", batchHandler.GetBatchSummary)
		api.GET("/price-batches/:id/items", batchHandler.ListItems)
		api.GET("/price-batches/:id/apply-logs", batchHandler.ListApplyLogs)
		api.GET("/price-batches/:id/export", batchHandler.ExportBatch)
		api.POST("/price-batches/:id/confirm", batchHandler.ConfirmBatch)
		api.POST("/price-batches/:id/confirm-items", batchHandler.ConfirmBatchItems)
		api.POST("/price-batches/:id/apply", batchHandler.ApplyBatch)
		api.POST("/price-batches/:id/revert", batchHandler.RevertBatch)
		api.POST("/price-batches/:id/cancel", batchHandler.CancelBatch)
		api.DELETE("/price-batches/:id", batchHandler.DeleteBatch)
	}

	// Safety settings endpoints
	{
		api.GET("/price-settings/:sellerId", settingsHandler.GetSettings)
		api.PUT("/price-settings/:sellerId", settingsHandler.UpdateSettings)
	}

	// Monitoring endpoints
	{
		api.POST("/price-monitor/changes", monitorHandler.RecordExternalChange)
		api.GET("/price-monitor/suspicious", monitorHandler.ListSuspicious)
		api.POST("/price-monitor/suspicious/:id/review", monitorHandler.MarkReviewed)
	}

	// Applied price change audit trail
	api.GET("/price-history", batchHandler.ListPriceHistory)

	// Product selection listing
	api.GET("/products", productsHandler.ListProducts)
	api.GET("/products/:nmId", productsHandler.GetProduct)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8098"
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Pricing service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	logger.Info("Shutting down server...")

	if publisher != nil {
		publisher.Close()
	}

	logger.Info("Server shutdown complete")
}
