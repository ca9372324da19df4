package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/internal/provider"
	"github.com/stockrhythm/gatewayapi/internal/risk"
	"github.com/stockrhythm/gatewayapi/internal/universe"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// outboundBuffer sizes the send queue between session tasks and the single
// connection writer.
const outboundBuffer = 64

// PaperStore is the append sink for simulated fills
type PaperStore interface {
	ExecuteOrder(order models.Order) (uint, error)
}

// TickPublisher mirrors ticks to an external channel. May be nil.
type TickPublisher interface {
	PublishTick(ctx context.Context, tick models.Tick) error
}

// Engine is the per-connection state machine. It owns the provider, at
// most one universe manager and the tick pump, and tears all of them down
// when the client disconnects.
type Engine struct {
	conn      *websocket.Conn
	provider  provider.MarketDataProvider
	resolver  *universe.Resolver
	paper     PaperStore
	publisher TickPublisher
	cash      float64

	mu              sync.Mutex
	paperTrade      bool
	protocolVersion int
	manager         *universe.Manager
	pumpStarted     bool

	outbound chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewEngine creates a session engine for an accepted connection. paper and
// publisher may be nil to disable the paper store and tick mirroring.
func NewEngine(conn *websocket.Conn, p provider.MarketDataProvider, resolver *universe.Resolver, paper PaperStore, publisher TickPublisher, cash float64) *Engine {
	return &Engine{
		conn:            conn,
		provider:        p,
		resolver:        resolver,
		paper:           paper,
		publisher:       publisher,
		cash:            cash,
		paperTrade:      true,
		protocolVersion: 1,
		outbound:        make(chan []byte, outboundBuffer),
	}
}

// Run drives the session until the client disconnects or parent is
// cancelled. It blocks on the reader and returns after full teardown.
func (e *Engine) Run(parent context.Context) {
	e.ctx, e.cancel = context.WithCancel(parent)

	writerDone := make(chan struct{})
	go e.writeLoop(writerDone)

	e.readLoop()

	e.cancel()
	e.mu.Lock()
	manager := e.manager
	e.manager = nil
	e.mu.Unlock()
	if manager != nil {
		manager.Stop()
	}
	<-writerDone

	zaplogger.Info("Session closed", zaplogger.Fields{"provider": e.provider.Name()})
}

// writeLoop is the sole writer on the connection. A write failure cancels
// the session; the reader then unblocks with a read error.
func (e *Engine) writeLoop(done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-e.ctx.Done():
			e.conn.Close()
			return
		case frame := <-e.outbound:
			if err := e.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zaplogger.Warn("Session write failed", zaplogger.Fields{"error": err.Error()})
				e.cancel()
				e.conn.Close()
				return
			}
		}
	}
}

// send marshals a frame onto the outbound queue. Frames are dropped once
// the session is shutting down.
func (e *Engine) send(frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		zaplogger.Error("Failed to marshal outbound frame", zaplogger.Fields{"error": err.Error()})
		return
	}
	select {
	case <-e.ctx.Done():
	case e.outbound <- payload:
	}
}

// readLoop processes inbound frames in arrival order. Malformed JSON and
// unknown actions are dropped without breaking the session.
func (e *Engine) readLoop() {
	for {
		_, raw, err := e.conn.ReadMessage()
		if err != nil {
			return
		}
		if e.ctx.Err() != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Action {
		case "configure":
			e.handleConfigure(raw, frame.Data)
		case "order":
			e.handleOrder(raw, frame.Data)
		default:
		}
	}
}

func (e *Engine) handleConfigure(raw []byte, data json.RawMessage) {
	var payload configurePayload
	if err := decodePayload(raw, data, &payload); err != nil {
		return
	}

	e.mu.Lock()
	if payload.PaperTrade != nil {
		e.paperTrade = *payload.PaperTrade
	}
	if payload.ProtocolVersion != nil {
		e.protocolVersion = *payload.ProtocolVersion
	}
	protocolVersion := e.protocolVersion
	var previous *universe.Manager
	if payload.Filter != nil || payload.Subscribe != nil {
		previous = e.manager
		e.manager = nil
	}
	e.mu.Unlock()

	// A filter or static subscribe replaces the subscription authority
	// wholesale, so any running manager stops before the new source of
	// truth takes over.
	if previous != nil {
		previous.Stop()
	}

	switch {
	case payload.Filter != nil:
		manager := universe.NewManager(*payload.Filter, e.provider, e.resolver, func(update models.UniverseUpdate) {
			e.send(universeFrame(update))
		})
		e.mu.Lock()
		e.manager = manager
		e.mu.Unlock()
		manager.Start(e.ctx)
	case payload.Subscribe != nil:
		e.provider.SetSubscriptions(payload.Subscribe)
		if protocolVersion >= 2 {
			e.send(universeFrame(models.UniverseUpdate{
				Added:     payload.Subscribe,
				Removed:   []string{},
				Universe:  payload.Subscribe,
				Reason:    "static_subscribe",
				Timestamp: nowUnixSeconds(),
			}))
		}
	}

	e.startPump()
}

func (e *Engine) handleOrder(raw []byte, data json.RawMessage) {
	var order models.Order
	if err := decodePayload(raw, data, &order); err != nil {
		return
	}
	if order.Symbol == "" {
		return
	}

	e.mu.Lock()
	paperTrade := e.paperTrade
	e.mu.Unlock()

	if !paperTrade {
		zaplogger.Warn("Live trading not implemented, order ignored", zaplogger.Fields{
			"symbol": order.Symbol,
		})
		return
	}

	if err := risk.ValidateOrder(order, risk.AccountState{Cash: e.cash}); err != nil {
		e.send(errorFrame(err.Error()))
		return
	}
	if e.paper == nil {
		e.send(errorFrame("paper store unavailable"))
		return
	}
	orderID, err := e.paper.ExecuteOrder(order)
	if err != nil {
		zaplogger.Error("Paper order failed", zaplogger.Fields{
			"symbol": order.Symbol,
			"error":  err.Error(),
		})
		e.send(errorFrame("order persistence failed"))
		return
	}
	zaplogger.Info("Paper order filled", zaplogger.Fields{
		"order_id": orderID,
		"symbol":   order.Symbol,
		"qty":      order.Qty,
		"side":     string(order.Side),
	})
}

// startPump launches the tick pump once per session
func (e *Engine) startPump() {
	e.mu.Lock()
	if e.pumpStarted {
		e.mu.Unlock()
		return
	}
	e.pumpStarted = true
	e.mu.Unlock()

	go func() {
		for tick := range e.provider.Stream(e.ctx) {
			if e.publisher != nil {
				if err := e.publisher.PublishTick(e.ctx, tick); err != nil {
					zaplogger.Warn("Tick publish failed", zaplogger.Fields{"error": err.Error()})
				}
			}
			e.mu.Lock()
			protocolVersion := e.protocolVersion
			e.mu.Unlock()
			e.send(tickFrame(tick, protocolVersion))
		}
	}()
}
