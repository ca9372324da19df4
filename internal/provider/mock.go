package provider

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// MockParams configures the mock provider's random walk
type MockParams struct {
	Symbols       []string
	BasePrice     float64
	MaxDeviation  float64
	Volatility    float64
	MeanReversion float64
	Interval      time.Duration
	VolumeMin     int64
	VolumeMax     int64
	Seed          int64
	Seeded        bool
}

// mockWalkState tracks the walk of one symbol
type mockWalkState struct {
	price     float64
	dayVolume float64
}

// MockProvider generates a bounded random walk per subscribed symbol. Two
// providers constructed with the same seed and inputs produce identical
// tick sequences.
type MockProvider struct {
	params MockParams
	rng    *rand.Rand

	mu         sync.Mutex
	subscribed []string
	walks      map[string]*mockWalkState
}

// NewMockProvider creates a new mock provider
func NewMockProvider(params MockParams) *MockProvider {
	if params.BasePrice == 0 {
		params.BasePrice = 100.0
	}
	if params.MaxDeviation == 0 {
		params.MaxDeviation = 5.0
	}
	if params.Volatility == 0 {
		params.Volatility = 0.5
	}
	if params.Interval == 0 {
		params.Interval = 500 * time.Millisecond
	}
	if params.VolumeMin == 0 {
		params.VolumeMin = 100
	}
	if params.VolumeMax <= params.VolumeMin {
		params.VolumeMax = params.VolumeMin + 900
	}

	seed := params.Seed
	if !params.Seeded {
		seed = time.Now().UnixNano()
	}

	return &MockProvider{
		params:     params,
		rng:        rand.New(rand.NewSource(seed)),
		subscribed: append([]string(nil), params.Symbols...),
		walks:      make(map[string]*mockWalkState),
	}
}

// Name identifies the provider
func (p *MockProvider) Name() string { return "mock" }

// Connect is trivial for the mock provider
func (p *MockProvider) Connect(ctx context.Context) error {
	zaplogger.Info("MockProvider connected")
	return nil
}

// Subscribe replaces the tracked symbol list
func (p *MockProvider) Subscribe(symbols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribed = append([]string(nil), symbols...)
}

// SetSubscriptions is an alias for Subscribe
func (p *MockProvider) SetSubscriptions(symbols []string) {
	p.Subscribe(symbols)
}

// Stream emits one tick per subscribed symbol per interval, symbols visited
// in sorted order so a fixed seed reproduces the exact sequence.
func (p *MockProvider) Stream(ctx context.Context) <-chan models.Tick {
	out := make(chan models.Tick)

	go func() {
		defer close(out)
		ticker := time.NewTicker(p.params.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			for _, tick := range p.nextBatch() {
				select {
				case <-ctx.Done():
					return
				case out <- tick:
				}
			}
		}
	}()

	return out
}

// nextBatch advances every subscribed walk by one step
func (p *MockProvider) nextBatch() []models.Tick {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbols := append([]string(nil), p.subscribed...)
	sort.Strings(symbols)

	ticks := make([]models.Tick, 0, len(symbols))
	now := time.Now()
	for _, symbol := range symbols {
		walk := p.walk(symbol)

		step := p.rng.Float64()*2*p.params.Volatility - p.params.Volatility
		price := walk.price + step + (p.params.BasePrice-walk.price)*p.params.MeanReversion
		if lo := p.params.BasePrice - p.params.MaxDeviation; price < lo {
			price = lo
		}
		if hi := p.params.BasePrice + p.params.MaxDeviation; price > hi {
			price = hi
		}
		walk.price = price

		volume := float64(p.params.VolumeMin + p.rng.Int63n(p.params.VolumeMax-p.params.VolumeMin+1))
		walk.dayVolume += volume

		ticks = append(ticks, models.Tick{
			Symbol:    symbol,
			Price:     price,
			Volume:    volume,
			Timestamp: now,
			Provider:  p.Name(),
		})
	}
	return ticks
}

func (p *MockProvider) walk(symbol string) *mockWalkState {
	walk, ok := p.walks[symbol]
	if !ok {
		walk = &mockWalkState{price: p.params.BasePrice}
		p.walks[symbol] = walk
	}
	return walk
}

// Snapshot returns the current walk price and accumulated day volume for
// each requested symbol. Symbols not yet walked report the base price.
func (p *MockProvider) Snapshot(ctx context.Context, symbols []string) (map[string]models.SnapshotRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := make(map[string]models.SnapshotRow, len(symbols))
	for _, symbol := range symbols {
		walk := p.walk(symbol)
		snap[symbol] = models.SnapshotRow{
			"last_price": walk.price,
			"day_volume": walk.dayVolume,
		}
	}
	return snap, nil
}

// Historical is not supported by the mock provider
func (p *MockProvider) Historical(ctx context.Context, symbols []string, start, end, interval string) ([]models.Tick, error) {
	return nil, errs.ErrNotSupported
}
