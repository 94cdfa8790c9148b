package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"solarkiosk/internal/api"
	"solarkiosk/internal/config"
	"solarkiosk/internal/service"
	"solarkiosk/internal/upstream"
	"solarkiosk/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Initialize logger
	logger.Init()
	logger.Info("Starting Solar Kiosk Bridge")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if !cfg.HasCredentials() {
		logger.Warn("ACCESS_KEY/SECRET_KEY not set; vendor calls will fail until configured")
	}

	// Wire upstream client and aggregator
	cache := service.NewCache(cfg.CacheTTL)
	client := upstream.NewClient(cfg.VendorBaseURL, cfg.AccessKey, cfg.SecretKey, cfg.RequestTimeout, cache)
	agg := service.NewAggregator(client, cfg.FanoutLimit)

	// Setup HTTP server
	router := setupRouter(api.NewHandler(cfg, client, agg, cache))
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Server starting on port %d", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error:", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced shutdown:", err)
	}

	logger.Info("Server stopped gracefully")
}

func setupRouter(h *api.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(api.RequestID())
	r.Use(api.Logger())
	r.Use(api.CORS())

	// Static files
	r.Static("/static", "./static")
	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	// API routes
	api.SetupRoutes(r, h)

	return r
}
