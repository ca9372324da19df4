package universe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// minRefresh floors a zero refresh_seconds so a tight spec cannot spin the
// resolve loop.
const minRefresh = 100 * time.Millisecond

// FeedProvider is the provider slice the manager drives: it snapshots for
// filter evaluation and receives the resolved subscription set.
type FeedProvider interface {
	Snapshotter
	SetSubscriptions(symbols []string)
}

// Manager owns the dynamic universe of one session. It re-resolves the
// filter spec on a fixed cadence, pushes the resulting subscription set to
// the provider and emits incremental UniverseUpdate messages through send.
type Manager struct {
	spec     models.FilterSpec
	provider FeedProvider
	resolver *Resolver
	send     func(models.UniverseUpdate)

	mu      sync.Mutex
	current map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a universe manager. send is called from the manager's
// own goroutine, once per refresh that changes the universe.
func NewManager(spec models.FilterSpec, provider FeedProvider, resolver *Resolver, send func(models.UniverseUpdate)) *Manager {
	return &Manager{
		spec:     spec,
		provider: provider,
		resolver: resolver,
		send:     send,
		current:  make(map[string]bool),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop
func (m *Manager) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	go m.run(ctx)
}

// Stop cancels the refresh loop and waits for it to exit
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Current returns the sorted current universe
func (m *Manager) Current() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.current)
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	refresh := time.Duration(m.spec.RefreshSeconds) * time.Second
	if refresh < minRefresh {
		refresh = minRefresh
	}

	for {
		m.refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(refresh):
		}
	}
}

// refresh resolves the spec once and applies the delta. Nothing is emitted
// when the universe is unchanged or the context is already cancelled.
func (m *Manager) refresh(ctx context.Context) {
	resolved := m.resolver.Resolve(ctx, m.spec, m.provider)
	if ctx.Err() != nil {
		return
	}

	next := make(map[string]bool, len(resolved))
	for _, symbol := range resolved {
		next[symbol] = true
	}

	m.mu.Lock()
	added := []string{}
	removed := []string{}
	for symbol := range next {
		if !m.current[symbol] {
			added = append(added, symbol)
		}
	}
	for symbol := range m.current {
		if !next[symbol] {
			removed = append(removed, symbol)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		m.mu.Unlock()
		return
	}
	m.current = next
	universe := sortedKeys(next)
	m.mu.Unlock()

	sort.Strings(added)
	sort.Strings(removed)

	m.provider.SetSubscriptions(universe)

	zaplogger.Info("Universe refreshed", zaplogger.Fields{
		"size":    len(universe),
		"added":   len(added),
		"removed": len(removed),
	})

	if ctx.Err() != nil {
		return
	}
	m.send(models.UniverseUpdate{
		Added:     added,
		Removed:   removed,
		Universe:  universe,
		Reason:    "filter_refresh",
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
