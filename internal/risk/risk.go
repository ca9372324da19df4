package risk

import (
	"fmt"

	"github.com/stockrhythm/gatewayapi/internal/models"
)

// MaxOrderQty is the per-order quantity ceiling
const MaxOrderQty = 1000

// AccountState is the account snapshot an order is validated against
type AccountState struct {
	Cash float64
}

// ValidateOrder runs pre-trade checks on an order. Market orders have no
// limit price, so their notional check uses zero cost and passes on cash.
func ValidateOrder(order models.Order, account AccountState) error {
	if order.Qty <= 0 {
		return fmt.Errorf("order quantity must be positive, got %d", order.Qty)
	}
	if order.Qty > MaxOrderQty {
		return fmt.Errorf("order quantity %d exceeds limit %d", order.Qty, MaxOrderQty)
	}

	var price float64
	if order.LimitPrice != nil {
		price = *order.LimitPrice
	}
	cost := float64(order.Qty) * price
	if order.Side == models.OrderSideBuy && cost > account.Cash {
		return fmt.Errorf("insufficient cash: order cost %.2f exceeds available %.2f", cost, account.Cash)
	}
	return nil
}
