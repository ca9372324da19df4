package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockrhythm/gatewayapi/internal/models"
)

func price(p float64) *float64 { return &p }

func TestValidateOrderAccepts(t *testing.T) {
	t.Parallel()
	account := AccountState{Cash: 100000}

	require.NoError(t, ValidateOrder(models.Order{
		Symbol: "TCS", Qty: 10, Side: models.OrderSideBuy,
		Type: models.OrderTypeLimit, LimitPrice: price(500),
	}, account))

	// Market orders have no notional to check
	require.NoError(t, ValidateOrder(models.Order{
		Symbol: "TCS", Qty: 10, Side: models.OrderSideBuy, Type: models.OrderTypeMarket,
	}, account))
}

func TestValidateOrderRejectsNonPositiveQty(t *testing.T) {
	t.Parallel()
	account := AccountState{Cash: 100000}

	require.Error(t, ValidateOrder(models.Order{Symbol: "TCS", Qty: 0, Side: models.OrderSideBuy}, account))
	require.Error(t, ValidateOrder(models.Order{Symbol: "TCS", Qty: -5, Side: models.OrderSideBuy}, account))
}

func TestValidateOrderRejectsOversizedQty(t *testing.T) {
	t.Parallel()
	account := AccountState{Cash: 1e9}

	require.NoError(t, ValidateOrder(models.Order{Symbol: "TCS", Qty: 1000, Side: models.OrderSideSell}, account))
	require.Error(t, ValidateOrder(models.Order{Symbol: "TCS", Qty: 1001, Side: models.OrderSideSell}, account))
}

func TestValidateOrderRejectsInsufficientCash(t *testing.T) {
	t.Parallel()
	account := AccountState{Cash: 1000}

	err := ValidateOrder(models.Order{
		Symbol: "TCS", Qty: 10, Side: models.OrderSideBuy,
		Type: models.OrderTypeLimit, LimitPrice: price(500),
	}, account)
	require.Error(t, err)

	// Sells are not cash constrained
	require.NoError(t, ValidateOrder(models.Order{
		Symbol: "TCS", Qty: 10, Side: models.OrderSideSell,
		Type: models.OrderTypeLimit, LimitPrice: price(500),
	}, account))
}
