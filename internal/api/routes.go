// Package api contains the API routes for the gateway
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stockrhythm/gatewayapi/internal/api/handlers"
	"github.com/stockrhythm/gatewayapi/internal/config"
	"github.com/stockrhythm/gatewayapi/internal/provider"
	"github.com/stockrhythm/gatewayapi/internal/repository"
	"github.com/stockrhythm/gatewayapi/internal/service"
	"github.com/stockrhythm/gatewayapi/internal/universe"
)

// SetupRoutes configures the routes for the gateway. master, indices and
// states are shared with the cron jobs that keep them warm and swept.
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *gorm.DB, redisClient *redis.Client, master *service.InstrumentService, indices *service.IndexService, states *handlers.StateStore) {
	tokens := repository.NewTokenRepository(db)
	paper := repository.NewPaperRepository(db)
	publisher := service.NewPublishService(redisClient)

	factory := provider.NewFactory(cfg, master, tokens)
	resolver := universe.NewResolver(master, indices)

	// Websocket sessions
	wsHandler := handlers.NewWSHandler(factory, resolver, paper, publisher, config.Float(cfg.PaperCash, 1000000))
	e.GET("/", wsHandler.Serve)

	// Health
	e.GET("/health", healthRoute)

	// Backtest
	backtestHandler := handlers.NewBacktestHandler(factory)
	e.POST("/backtest", backtestHandler.Backtest)

	// OAuth redirect flow
	authHandler := handlers.NewAuthHandler(cfg, tokens, states)
	e.GET("/upstox/auth", authHandler.Authorize)
	e.GET("/upstox/callback", authHandler.Callback)
}

// healthRoute reports process liveness
func healthRoute(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
