// Package provider contains the market data provider implementations for
// the Gateway API. Every provider normalizes its broker's wire format into
// models.Tick; capabilities a broker lacks return errs.ErrNotSupported.
package provider

import (
	"context"
	"time"

	"github.com/stockrhythm/gatewayapi/internal/models"
)

// pollInterval is the quote poll cadence for REST providers. Brokers allow
// more, one request per second keeps us well inside every documented limit.
const pollInterval = 1 * time.Second

// requestTimeout is the fixed per-request timeout for broker HTTP calls.
const requestTimeout = 10 * time.Second

// MarketDataProvider is the uniform interface over broker backends. One
// provider instance belongs to one session; Stream may be consumed once and
// is restartable only by creating a new instance.
type MarketDataProvider interface {
	// Name identifies the provider in ticks and logs, e.g. "mock".
	Name() string

	// Connect performs authentication and obtains session credentials.
	Connect(ctx context.Context) error

	// Subscribe replaces the tracked symbol list with the given one.
	Subscribe(symbols []string)

	// SetSubscriptions is an alias for Subscribe (full replace).
	SetSubscriptions(symbols []string)

	// Stream returns the provider's tick channel. The channel is closed
	// when ctx is cancelled.
	Stream(ctx context.Context) <-chan models.Tick

	// Snapshot returns one-shot quote fields per symbol, used to evaluate
	// filter conditions. Returns errs.ErrNotSupported where absent.
	Snapshot(ctx context.Context, symbols []string) (map[string]models.SnapshotRow, error)

	// Historical fetches candles for the symbols between start and end
	// (dates, "2006-01-02"), one tick per candle with price = close.
	// Returns errs.ErrNotSupported where absent.
	Historical(ctx context.Context, symbols []string, start, end, interval string) ([]models.Tick, error)
}
