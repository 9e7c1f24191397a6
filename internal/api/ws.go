package api

import (
	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/internal/websocket"
	"github.com/yegors/sectional/pkg/logger"
)

// wsSender is the reply surface of one connected client.
type wsSender interface {
	SendMessage(message *websocket.Message) bool
}

// WSHandler answers inbound dashboard messages on /ws: a status query gets a
// direct reply, a refresh request triggers an immediate cycle (the result
// reaches the client through the regular rating_update broadcast).
type WSHandler struct {
	metarService *metar.Service
	logger       *logger.Logger
}

// NewWSHandler creates the websocket message handler.
func NewWSHandler(metarService *metar.Service, log *logger.Logger) *WSHandler {
	return &WSHandler{
		metarService: metarService,
		logger:       log.Named("ws-handler"),
	}
}

// HandleMessage dispatches one inbound client message.
func (h *WSHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	return h.handle(client, messageType)
}

func (h *WSHandler) handle(sender wsSender, messageType string) error {
	switch messageType {
	case websocket.MessageTypeStatus:
		payload := map[string]any{
			"started": h.metarService.IsStarted(),
		}
		if cycle := h.metarService.LatestNoWait(); cycle != nil {
			payload["last_cycle_at"] = cycle.StartedAt
			payload["counts"] = cycle.CountByCategory()
		}
		sender.SendMessage(&websocket.Message{
			Type: websocket.MessageTypeStatus,
			Data: payload,
		})
	case websocket.MessageTypeRefresh:
		h.metarService.RefreshNow()
	default:
		h.logger.Debug("Ignoring unknown client message",
			logger.String("type", messageType))
	}
	return nil
}
