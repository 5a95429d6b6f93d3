package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/utils/log"
)

// Hub tracks live clients and routes replies to them by channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	log.WithCtx(client.ctx).Debug("New client registered")
}

// Unregister removes a client from the hub and closes it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		client.Close()
		log.WithCtx(client.ctx).Debug("Client unregistered")
	}
}

// Send implements domain.ReplySink. The reply goes to every open connection
// on channelID.
func (h *Hub) Send(ctx context.Context, channelID string, text string) error {
	targets := h.clientsOn(channelID)
	if len(targets) == 0 {
		return fmt.Errorf("no websocket client on channel %s", channelID)
	}

	var delivered int
	for _, client := range targets {
		frame, err := json.Marshal(Message{
			Type:      MessageTypeReply,
			DeviceID:  client.caller.DeviceID,
			Timestamp: time.Now().UTC(),
			Data:      map[string]interface{}{"text": text},
		})
		if err != nil {
			return err
		}
		if err := client.SendMessage(frame); err != nil {
			log.WithCtx(ctx).Warn("⚠️ Dropping reply for client", zap.Error(err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("reply for channel %s not delivered", channelID)
	}
	return nil
}

func (h *Hub) clientsOn(channelID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	for client := range h.clients {
		if client.channelID == channelID && !client.IsClosed() {
			out = append(out, client)
		}
	}
	return out
}

// CloseAll disconnects every client. Used on shutdown since hijacked
// connections are not tracked by the HTTP server.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for client := range clients {
		client.Close()
	}
}

// IsDeviceConnected checks if a device has an open connection.
func (h *Hub) IsDeviceConnected(deviceID string) bool {
	return len(h.clientsOn(ChannelID(deviceID))) > 0
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
