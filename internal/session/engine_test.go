package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/internal/provider"
	"github.com/stockrhythm/gatewayapi/internal/universe"
)

type stubMaster struct{}

func (stubMaster) Resolve(symbol string) (string, bool) { return symbol, true }
func (stubMaster) SymbolsFor(exchange, segment string) []string {
	return nil
}

type recordingPaperStore struct {
	mu     sync.Mutex
	orders []models.Order
	nextID uint
}

func (s *recordingPaperStore) ExecuteOrder(order models.Order) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	s.nextID++
	return s.nextID, nil
}

func (s *recordingPaperStore) recorded() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.orders...)
}

func testMockProvider() *provider.MockProvider {
	return provider.NewMockProvider(provider.MockParams{
		Symbols:      []string{"MOCK"},
		BasePrice:    100,
		MaxDeviation: 5,
		Interval:     5 * time.Millisecond,
		Seed:         1,
		Seeded:       true,
	})
}

// dialSession stands up a server whose handler runs a session engine on
// each connection and returns a connected client.
func dialSession(t *testing.T, p provider.MarketDataProvider, paper PaperStore) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	resolver := universe.NewResolver(stubMaster{}, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		engine := NewEngine(conn, p, resolver, paper, nil, 1000000)
		engine.Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readFrame(t *testing.T, client *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

// readAction skips frames until one with the wanted action arrives
func readAction(t *testing.T, client *websocket.Conn, action string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 200; i++ {
		frame := readFrame(t, client)
		if frame["action"] == action {
			return frame
		}
	}
	t.Fatalf("no %q frame received", action)
	return nil
}

func sendJSON(t *testing.T, client *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, client.WriteJSON(v))
}

func TestSessionV2StaticSubscribe(t *testing.T) {
	t.Parallel()
	client := dialSession(t, testMockProvider(), nil)

	sendJSON(t, client, map[string]interface{}{
		"action": "configure",
		"data": map[string]interface{}{
			"paper_trade":      true,
			"protocol_version": 2,
			"subscribe":        []string{"MOCK"},
		},
	})

	uni := readAction(t, client, "universe")
	data := uni["data"].(map[string]interface{})
	require.Equal(t, "static_subscribe", data["reason"])
	require.Equal(t, []interface{}{"MOCK"}, data["universe"])
	require.Equal(t, []interface{}{"MOCK"}, data["added"])
	require.Empty(t, data["removed"])

	tick := readAction(t, client, "tick")
	tickData := tick["data"].(map[string]interface{})
	require.Equal(t, "MOCK", tickData["symbol"])
	require.Equal(t, "mock", tickData["provider"])
	require.InDelta(t, 100, tickData["price"].(float64), 5)
}

func TestSessionV1BareTicks(t *testing.T) {
	t.Parallel()
	client := dialSession(t, testMockProvider(), nil)

	// v1 shape: payload at the top level, no data wrapper
	sendJSON(t, client, map[string]interface{}{
		"action":      "configure",
		"paper_trade": true,
		"subscribe":   []string{"MOCK"},
	})

	frame := readFrame(t, client)
	require.Nil(t, frame["action"])
	require.Equal(t, "MOCK", frame["symbol"])
	require.NotNil(t, frame["price"])
}

func TestSessionFilterEmitsUniverseUpdates(t *testing.T) {
	t.Parallel()
	client := dialSession(t, testMockProvider(), nil)

	sendJSON(t, client, map[string]interface{}{
		"action": "configure",
		"data": map[string]interface{}{
			"protocol_version": 2,
			"filter": map[string]interface{}{
				"candidates":      map[string]interface{}{"type": "watchlist", "symbols": []string{"B", "A"}},
				"conditions":      []map[string]interface{}{{"field": "last_price", "op": "gt", "value": 1}},
				"refresh_seconds": 3600,
				"max_symbols":     50,
			},
		},
	})

	uni := readAction(t, client, "universe")
	data := uni["data"].(map[string]interface{})
	require.Equal(t, "filter_refresh", data["reason"])
	require.Equal(t, []interface{}{"A", "B"}, data["universe"])
	require.NotZero(t, data["timestamp"])
}

func TestSessionPaperOrder(t *testing.T) {
	t.Parallel()
	store := &recordingPaperStore{}
	client := dialSession(t, testMockProvider(), store)

	sendJSON(t, client, map[string]interface{}{
		"action": "order",
		"data": map[string]interface{}{
			"symbol": "RELIANCE", "qty": 10, "side": "BUY",
			"type": "LIMIT", "limit_price": 2885.5,
		},
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(store.recorded()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	orders := store.recorded()
	require.Len(t, orders, 1)
	require.Equal(t, "RELIANCE", orders[0].Symbol)
	require.Equal(t, models.OrderSideBuy, orders[0].Side)
	require.Equal(t, 2885.5, *orders[0].LimitPrice)
}

func TestSessionOrderTopLevelFallback(t *testing.T) {
	t.Parallel()
	store := &recordingPaperStore{}
	client := dialSession(t, testMockProvider(), store)

	sendJSON(t, client, map[string]interface{}{
		"action": "order",
		"symbol": "TCS", "qty": 1, "side": "SELL", "type": "MARKET",
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(store.recorded()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	orders := store.recorded()
	require.Len(t, orders, 1)
	require.Equal(t, "TCS", orders[0].Symbol)
}

func TestSessionRiskRejectionSendsErrorFrame(t *testing.T) {
	t.Parallel()
	store := &recordingPaperStore{}
	client := dialSession(t, testMockProvider(), store)

	sendJSON(t, client, map[string]interface{}{
		"action": "order",
		"data": map[string]interface{}{
			"symbol": "TCS", "qty": 5000, "side": "BUY", "type": "MARKET",
		},
	})

	frame := readAction(t, client, "error")
	data := frame["data"].(map[string]interface{})
	require.Contains(t, data["message"], "quantity")
	require.Empty(t, store.recorded())
}

func TestSessionSurvivesMalformedInput(t *testing.T) {
	t.Parallel()
	store := &recordingPaperStore{}
	client := dialSession(t, testMockProvider(), store)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("{not json")))
	sendJSON(t, client, map[string]interface{}{"action": "mystery"})
	sendJSON(t, client, map[string]interface{}{
		"action": "order",
		"data":   map[string]interface{}{"symbol": "TCS", "qty": 1, "side": "BUY", "type": "MARKET"},
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(store.recorded()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, store.recorded(), 1)
}

func TestSessionReconfigureReplacesManager(t *testing.T) {
	t.Parallel()
	client := dialSession(t, testMockProvider(), nil)

	sendJSON(t, client, map[string]interface{}{
		"action": "configure",
		"data": map[string]interface{}{
			"protocol_version": 2,
			"filter": map[string]interface{}{
				"candidates":      map[string]interface{}{"type": "watchlist", "symbols": []string{"A"}},
				"refresh_seconds": 3600,
			},
		},
	})
	first := readAction(t, client, "universe")
	require.Equal(t, []interface{}{"A"}, first["data"].(map[string]interface{})["universe"])

	// A second configure with a static subscribe tears the manager down
	sendJSON(t, client, map[string]interface{}{
		"action": "configure",
		"data": map[string]interface{}{
			"protocol_version": 2,
			"subscribe":        []string{"X", "Y"},
		},
	})
	second := readAction(t, client, "universe")
	data := second["data"].(map[string]interface{})
	require.Equal(t, "static_subscribe", data["reason"])
	require.Equal(t, []interface{}{"X", "Y"}, data["universe"])
}

func TestSessionTeardownOnDisconnect(t *testing.T) {
	t.Parallel()

	p := testMockProvider()
	resolver := universe.NewResolver(stubMaster{}, nil)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		engine := NewEngine(conn, p, resolver, nil, nil, 1000000)
		engine.Run(context.Background())
		close(done)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	sendJSON(t, client, map[string]interface{}{
		"action": "configure",
		"data":   map[string]interface{}{"subscribe": []string{"MOCK"}},
	})
	require.NoError(t, client.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = client.ReadMessage()
	require.NoError(t, err)

	client.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not shut down after disconnect")
	}
}
