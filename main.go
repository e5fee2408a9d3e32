package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"label-service/controllers"
	"label-service/couriers"
	"label-service/database"
	"label-service/httpclient"
	"label-service/middleware"
	"label-service/repository"
	"label-service/routes"
	"label-service/services"
	"label-service/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := database.Connect(database.Config{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close() //nolint:errcheck

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Object store
	var store storage.ObjectStore
	if awsCfg, awsErr := storage.LoadAWSConfig(context.Background()); awsErr != nil {
		logger.Warn("AWS config unavailable, object store disabled", zap.Error(awsErr))
	} else if cfg.LabelBucket == "" {
		logger.Warn("LABEL_BUCKET not set, object store disabled")
	} else {
		store = storage.NewS3Store(awsCfg, cfg.LabelBucket)
	}

	// DI chain
	courierRepo := repository.NewGormCourierRepository(database.DB)
	labelRepo := repository.NewGormLabelRepository(database.DB)
	runRepo := repository.NewGormPrintRunRepository(database.DB)
	retention := time.Duration(cfg.ManifestRetentionDays) * 24 * time.Hour
	publisher := services.NewArtifactPublisher(store, runRepo, retention, logger)
	printService := services.NewLabelPrintService(
		courierRepo,
		labelRepo,
		runRepo,
		couriers.DefaultRegistry(),
		httpclient.New(logger),
		store,
		publisher,
		logger,
	)
	labelController := controllers.NewLabelController(printService)

	r := gin.New()

	// Global request-logging middleware
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
		)
	})

	// Whole-run timeout; on expiry the run still returns the ledger
	// accumulated so far
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.Use(middleware.NewRateLimiter(rate.Limit(10), 20).Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "label-service"})
	})

	routes.RegisterLabelRoutes(r, labelController, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Label service started", zap.String("port", cfg.Port))
	<-quit
	logger.Info("Shutting down label service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}
