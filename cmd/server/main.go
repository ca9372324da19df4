// Package main is the entry point for the StockRhythm Gateway API
package main

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/stockrhythm/gatewayapi/internal/api"
	"github.com/stockrhythm/gatewayapi/internal/api/handlers"
	"github.com/stockrhythm/gatewayapi/internal/api/middleware"
	"github.com/stockrhythm/gatewayapi/internal/config"
	"github.com/stockrhythm/gatewayapi/internal/repository"
	"github.com/stockrhythm/gatewayapi/internal/service"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

func main() {
	// Load configuration
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Print the configuration
	fmt.Println(cfg.String())

	// Connect to the database
	db, err := repository.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Connect Redis
	redisClient, err := repository.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Init logger
	err = zaplogger.InitLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Setup logger
	defer zaplogger.Sync()
	zaplogger.SetLogLevel(cfg.ServerLogLevel)

	// startUpMessage
	zaplogger.Info(cfg.APIName + " - " + cfg.APIVersion + " initialized")
	zaplogger.Info("Database initialized")
	if redisClient != nil {
		zaplogger.Info("Redis initialized")
	}

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Setup middleware
	middleware.SetupLoggerMiddleware(e)

	// Shared services
	master := service.NewInstrumentService(cfg.InstrumentsCSV)
	indices := service.NewIndexService(redisClient)
	states := handlers.NewStateStore()

	// Setup routes
	api.SetupRoutes(e, cfg, db, redisClient, master, indices, states)

	// Setup and start cron jobs
	cronService := service.NewCronService(cfg, redisClient, master, indices, states)
	cronService.Start()

	// Start the server
	startServer(e, cfg)
}

// startServer starts the Echo server on the specified port
func startServer(e *echo.Echo, cfg *config.Config) {
	port := cfg.ServerPort
	if port == "" {
		port = "8000"
	}
	zaplogger.Info("SERVER STARTED ON PORT " + port)
	e.Logger.Fatal(e.Start(":" + port))
}
