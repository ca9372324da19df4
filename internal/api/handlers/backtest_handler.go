package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/internal/provider"
	"github.com/stockrhythm/gatewayapi/pkg/utils/response"
)

// BacktestHandler serves historical candles as normalized ticks
type BacktestHandler struct {
	factory *provider.Factory
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(factory *provider.Factory) *BacktestHandler {
	return &BacktestHandler{factory: factory}
}

// BacktestRequest is the POST /backtest body
type BacktestRequest struct {
	Symbols  []string `json:"symbols"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Interval string   `json:"interval"`
	Provider string   `json:"provider"`
}

// Backtest fetches historical data through the selected provider
func (h *BacktestHandler) Backtest(c echo.Context) error {
	var req BacktestRequest
	if err := c.Bind(&req); err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "Invalid request body")
	}
	if len(req.Symbols) == 0 || req.Start == "" || req.End == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "symbols, start and end are required")
	}

	p, err := h.factory.Provider(req.Provider)
	if err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", err.Error())
	}
	if err := p.Connect(c.Request().Context()); err != nil {
		return response.ErrorResponse(c, http.StatusBadGateway, "AuthenticationException", err.Error())
	}

	ticks, err := p.Historical(c.Request().Context(), req.Symbols, req.Start, req.End, req.Interval)
	if err != nil {
		if errors.Is(err, errs.ErrNotSupported) {
			return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "provider has no historical data support")
		}
		return response.ErrorResponse(c, http.StatusBadGateway, "GeneralException", err.Error())
	}
	if ticks == nil {
		ticks = []models.Tick{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"ticks": ticks})
}
