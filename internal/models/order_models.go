package models

import "time"

// TableName is the name of the table for paper orders
var OrdersTableName = "orders"

// TableName is the name of the table for paper trades
var TradesTableName = "trades"

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the execution type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Order represents a standardized order request from a client
type Order struct {
	ID         string    `json:"id,omitempty"`
	Symbol     string    `json:"symbol"`
	Qty        int       `json:"qty"`
	Side       OrderSide `json:"side"`
	Type       OrderType `json:"type"`
	LimitPrice *float64  `json:"limit_price,omitempty"`
}

// OrderModel represents a persisted paper order row
type OrderModel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"index" json:"symbol"`
	Qty        int       `json:"qty"`
	Side       string    `json:"side"`
	Type       string    `gorm:"column:type" json:"type"`
	LimitPrice float64   `json:"limit_price"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// TableName specifies the table name for the OrderModel model
func (OrderModel) TableName() string {
	return OrdersTableName
}

// TradeModel represents a persisted paper fill row
type TradeModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index" json:"order_id"`
	Symbol    string    `json:"symbol"`
	Qty       int       `json:"qty"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// TableName specifies the table name for the TradeModel model
func (TradeModel) TableName() string {
	return TradesTableName
}
