package universe

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// SymbolResolver maps user symbols to provider tokens and enumerates the
// instrument master.
type SymbolResolver interface {
	Resolve(symbol string) (string, bool)
	SymbolsFor(exchange, segment string) []string
}

// IndexSource lists the constituent symbols of a named index
type IndexSource interface {
	Constituents(name string) ([]string, error)
}

// Snapshotter is the provider slice the resolver needs for filter
// conditions and sorting.
type Snapshotter interface {
	Snapshot(ctx context.Context, symbols []string) (map[string]models.SnapshotRow, error)
}

// Resolver turns a FilterSpec into a concrete, ordered symbol list
type Resolver struct {
	master  SymbolResolver
	indices IndexSource

	snapshotWarn sync.Once
}

// NewResolver creates a resolver. indices may be nil, in which case index
// candidates resolve to an empty list.
func NewResolver(master SymbolResolver, indices IndexSource) *Resolver {
	return &Resolver{master: master, indices: indices}
}

// Candidates expands the first-stage symbol source of a spec. Order is
// preserved for watchlists and indices. Watchlist symbols resolve to their
// canonical tokens through the instrument master; unknown symbols pass
// through verbatim so a provider-specific token still reaches the provider.
func (r *Resolver) Candidates(spec models.FilterSpec) []string {
	c := spec.Candidates
	switch c.Type {
	case "watchlist":
		symbols := make([]string, 0, len(c.Symbols))
		for _, symbol := range c.Symbols {
			token, ok := r.master.Resolve(symbol)
			if !ok {
				zaplogger.Warn("Watchlist symbol not in instrument master, passing through", zaplogger.Fields{
					"symbol": symbol,
				})
				symbols = append(symbols, symbol)
				continue
			}
			symbols = append(symbols, token)
		}
		return symbols
	case "index":
		if r.indices == nil {
			return nil
		}
		symbols, err := r.indices.Constituents(c.Name)
		if err != nil {
			zaplogger.Warn("Index constituents unavailable", zaplogger.Fields{
				"index": c.Name,
				"error": err.Error(),
			})
			return nil
		}
		return symbols
	case "instrument_master":
		return r.master.SymbolsFor(c.Exchange, c.Segment)
	default:
		zaplogger.Warn("Unknown candidate type", zaplogger.Fields{"type": c.Type})
		return nil
	}
}

// Resolve computes the universe for a spec: candidates, then AND-combined
// snapshot conditions, then sort, then the max_symbols prefix. A provider
// without snapshot support degrades to the unfiltered candidate list.
func (r *Resolver) Resolve(ctx context.Context, spec models.FilterSpec, provider Snapshotter) []string {
	base := r.Candidates(spec)

	if len(spec.Conditions) == 0 && len(spec.Sort) == 0 {
		return capList(base, spec.MaxSymbols)
	}

	snap, err := provider.Snapshot(ctx, base)
	if err != nil {
		if errors.Is(err, errs.ErrNotSupported) {
			r.snapshotWarn.Do(func() {
				zaplogger.Warn("Provider has no snapshot support, conditions and sort are ignored")
			})
		} else {
			zaplogger.Error("Snapshot failed, keeping unfiltered candidates", zaplogger.Fields{
				"error": err.Error(),
			})
		}
		return capList(base, spec.MaxSymbols)
	}

	filtered := make([]string, 0, len(base))
	for _, symbol := range base {
		row, ok := snap[symbol]
		if !ok {
			// Only conditions disqualify a symbol; a sort-only spec keeps
			// symbols without snapshot data and orders them last.
			if len(spec.Conditions) > 0 {
				continue
			}
			filtered = append(filtered, symbol)
			continue
		}
		pass := true
		for _, cond := range spec.Conditions {
			if !Passes(row[cond.Field], cond.Op, cond.Value) {
				pass = false
				break
			}
		}
		if pass {
			filtered = append(filtered, symbol)
		}
	}

	if len(spec.Sort) > 0 {
		sortSymbols(filtered, snap, spec.Sort)
	}

	return capList(filtered, spec.MaxSymbols)
}

// sortSymbols orders symbols by the sort keys in sequence. Symbols whose
// row lacks a numeric value for a key sort after those that have one.
func sortSymbols(symbols []string, snap map[string]models.SnapshotRow, keys []models.SortSpec) {
	sort.SliceStable(symbols, func(i, j int) bool {
		for _, key := range keys {
			left, lok := toFloat(snap[symbols[i]][key.Field])
			right, rok := toFloat(snap[symbols[j]][key.Field])
			if !lok && !rok {
				continue
			}
			if !rok {
				return true
			}
			if !lok {
				return false
			}
			if left == right {
				continue
			}
			if key.Direction == models.SortDesc {
				return left > right
			}
			return left < right
		}
		return false
	})
}

func capList(symbols []string, max int) []string {
	if max > 0 && len(symbols) > max {
		return symbols[:max]
	}
	return symbols
}
