// Package handlers contains the HTTP and websocket handlers for the gateway
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/provider"
	"github.com/stockrhythm/gatewayapi/internal/session"
	"github.com/stockrhythm/gatewayapi/internal/universe"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// WSHandler accepts client sessions and hands each one to a session engine
type WSHandler struct {
	factory   *provider.Factory
	resolver  *universe.Resolver
	paper     session.PaperStore
	publisher session.TickPublisher
	cash      float64

	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket session handler
func NewWSHandler(factory *provider.Factory, resolver *universe.Resolver, paper session.PaperStore, publisher session.TickPublisher, cash float64) *WSHandler {
	return &WSHandler{
		factory:   factory,
		resolver:  resolver,
		paper:     paper,
		publisher: publisher,
		cash:      cash,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and runs the session until disconnect. The
// optional "provider" query parameter overrides the configured provider.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	p, err := h.factory.Provider(c.QueryParam("provider"))
	if err != nil {
		writeErrorFrame(conn, err.Error())
		return nil
	}

	ctx := c.Request().Context()
	if err := p.Connect(ctx); err != nil {
		if errs.IsAuthError(err) {
			zaplogger.Error("Provider authentication failed", zaplogger.Fields{
				"provider": p.Name(),
				"error":    err.Error(),
			})
			writeErrorFrame(conn, err.Error())
			return nil
		}
		writeErrorFrame(conn, "provider connect failed: "+err.Error())
		return nil
	}

	zaplogger.Info("Session started", zaplogger.Fields{"provider": p.Name()})
	engine := session.NewEngine(conn, p, h.resolver, h.paper, h.publisher, h.cash)
	engine.Run(ctx)
	return nil
}

func writeErrorFrame(conn *websocket.Conn, message string) {
	frame, err := json.Marshal(map[string]interface{}{
		"action": "error",
		"data":   map[string]string{"message": message},
	})
	if err != nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, frame)
}
