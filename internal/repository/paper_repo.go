package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
	"gorm.io/gorm"
)

// PaperRepository is the append sink for simulated fills. Order IDs are
// assigned by the database and are strictly increasing per store.
type PaperRepository struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewPaperRepository creates a new repository for paper orders and trades
func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// ExecuteOrder records the order as immediately filled: one orders row and
// one trades row, written atomically. Returns the new order id.
func (r *PaperRepository) ExecuteOrder(order models.Order) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var limitPrice float64
	if order.LimitPrice != nil {
		limitPrice = *order.LimitPrice
	}

	now := time.Now()
	orderRow := models.OrderModel{
		Symbol:     order.Symbol,
		Qty:        order.Qty,
		Side:       string(order.Side),
		Type:       string(order.Type),
		LimitPrice: limitPrice,
		Status:     "FILLED",
		Timestamp:  now,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&orderRow).Error; err != nil {
			return err
		}
		tradeRow := models.TradeModel{
			OrderID:   orderRow.ID,
			Symbol:    order.Symbol,
			Qty:       order.Qty,
			Price:     limitPrice,
			Timestamp: now,
		}
		return tx.Create(&tradeRow).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record paper order: %v", err)
	}

	zaplogger.Info("Recorded paper order", zaplogger.Fields{
		"order_id": orderRow.ID,
		"symbol":   order.Symbol,
		"qty":      order.Qty,
		"side":     order.Side,
	})

	return orderRow.ID, nil
}

// GetOrders returns all persisted paper orders, oldest first
func (r *PaperRepository) GetOrders() ([]models.OrderModel, error) {
	var orders []models.OrderModel
	err := r.db.Order("id asc").Find(&orders).Error
	return orders, err
}

// GetTrades returns all persisted paper trades, oldest first
func (r *PaperRepository) GetTrades() ([]models.TradeModel, error) {
	var trades []models.TradeModel
	err := r.db.Order("id asc").Find(&trades).Error
	return trades, err
}
