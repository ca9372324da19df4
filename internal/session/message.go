package session

import (
	"encoding/json"
	"time"

	"github.com/stockrhythm/gatewayapi/internal/models"
)

// inboundFrame is the raw envelope of a client message. Data stays raw so
// the v1/v2 payload shapes can be resolved per action.
type inboundFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// configurePayload is the configure action body after shape normalization
type configurePayload struct {
	PaperTrade      *bool              `json:"paper_trade"`
	ProtocolVersion *int               `json:"protocol_version"`
	Subscribe       []string           `json:"subscribe"`
	Filter          *models.FilterSpec `json:"filter"`
}

// decodePayload resolves the two accepted message shapes: "v2" carries the
// payload under data, "v1" carries it at the top level. raw is the full
// frame; data is the frame's data member, possibly absent.
func decodePayload(raw []byte, data json.RawMessage, out interface{}) error {
	if len(data) > 0 && string(data) != "null" {
		return json.Unmarshal(data, out)
	}
	return json.Unmarshal(raw, out)
}

// actionFrame is the v2 outbound envelope
type actionFrame struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

func tickFrame(tick models.Tick, protocolVersion int) interface{} {
	if protocolVersion >= 2 {
		return actionFrame{Action: "tick", Data: tick}
	}
	return tick
}

func universeFrame(update models.UniverseUpdate) interface{} {
	return actionFrame{Action: "universe", Data: update}
}

func errorFrame(message string) interface{} {
	return actionFrame{Action: "error", Data: map[string]string{"message": message}}
}

func nowUnixSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
