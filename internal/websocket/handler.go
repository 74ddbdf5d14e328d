package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
)

func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// BroadcastStatusUpdate pushes a status change to all watchers. Only
// the status envelope goes out; key material is never broadcast.
func BroadcastStatusUpdate(hub *Hub, rec *interfaces.ResultRecord) {
	if hub == nil {
		return
	}

	message, err := json.Marshal(map[string]any{
		"type": "status_update",
		"data": map[string]any{
			"request_id": rec.RequestID,
			"status":     rec.Status,
			"key_type":   rec.KeyType,
		},
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to marshal status update")
		return
	}

	hub.Broadcast(message)
}
