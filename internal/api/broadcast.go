package api

import (
	"github.com/yegors/sectional/internal/display"
	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/internal/websocket"
)

// RatingBroadcaster pushes each completed cycle to websocket clients as a
// rating_update message. It satisfies the ingestion service's sink interface.
type RatingBroadcaster struct {
	wsServer *websocket.Server
	palette  *display.Palette
}

// NewRatingBroadcaster creates a broadcaster over the given websocket server.
func NewRatingBroadcaster(wsServer *websocket.Server, palette *display.Palette) *RatingBroadcaster {
	return &RatingBroadcaster{wsServer: wsServer, palette: palette}
}

// PublishCycle broadcasts the cycle's records to all connected clients.
func (b *RatingBroadcaster) PublishCycle(cycle *metar.Cycle) {
	ratings := make([]RatingEntry, 0, len(cycle.Records))
	for _, record := range cycle.Records {
		ratings = append(ratings, RatingEntry{
			Airport:  record.Airport,
			Category: string(record.Category),
			Source:   string(record.Source),
			Color:    b.palette.ColorFor(record.Category),
		})
	}

	b.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeRatingUpdate,
		Data: map[string]any{
			"ratings":    ratings,
			"counts":     cycle.CountByCategory(),
			"started_at": cycle.StartedAt,
		},
	})
}
