package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	v1 "github.com/01phanto/EcoLedger/api/v1"
	"github.com/01phanto/EcoLedger/internal/config"
	"github.com/01phanto/EcoLedger/internal/database"
	"github.com/01phanto/EcoLedger/internal/issuance"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
	"github.com/01phanto/EcoLedger/internal/projects"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	if os.Getenv("GIN_MODE") != "release" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Wire storage. The memory driver is for local development only and
	// is never a silent fallback for an unreachable database.
	var (
		projectRepo projects.Repository
		marketRepo  marketplace.Repository
		store       ledger.Store
	)
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("Using in-memory storage; nothing will be persisted")
		projectRepo = projects.NewMemoryRepository()
		marketRepo = marketplace.NewMemoryRepository()
		store = ledger.NewMemoryStore()
	default:
		dbURL := cfg.Database.GetDatabaseURL()
		db, err := sqlx.Connect("postgres", dbURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

		if err := database.ApplyMigrations(context.Background(), db, cfg.Database.MigrationsPath, logger); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}

		gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
		if err != nil {
			logger.Fatal("Failed to initialize ORM", zap.Error(err))
		}

		projectRepo = projects.NewGormRepository(gormDB)
		marketRepo = marketplace.NewPostgresRepository(db)
		store = ledger.NewPostgresStore(db, logger)
	}

	api := v1.Setup(projectRepo, marketRepo, store, issuance.ParamsFromConfig(cfg.Issuance), logger)

	// Setup Router
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Actor-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	apiGroup := router.Group("/api/v1")
	api.RegisterRoutes(apiGroup)

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Driver))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
