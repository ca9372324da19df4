// Package models contains the models for the Gateway API
package models

import "time"

// Tick represents a normalized market data event. Ticks are immutable once
// produced by a provider.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
}

// SnapshotRow holds the quote fields for one symbol, as returned by a
// provider snapshot. Field names are provider-normalized, e.g. "last_price",
// "day_volume".
type SnapshotRow map[string]interface{}
