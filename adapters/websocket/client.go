package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/domain"
	"github.com/satriahrh/cocoa-relay/utils/log"
)

// Client is one authenticated device connection. Text frames become inbound
// messages on the broker; replies for the client's channel come back through
// the Hub.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	broker    domain.MessageBroker
	caller    domain.Caller
	channelID string
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
}

// Message is the JSON envelope for frames in both directions.
type Message struct {
	Type      string                 `json:"type"`
	DeviceID  string                 `json:"device_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	MessageTypeMessage = "message"
	MessageTypeReply   = "reply"
	MessageTypeError   = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// NewClient wraps conn for caller. Every connection of the same device shares
// one conversation channel.
func NewClient(conn *websocket.Conn, broker domain.MessageBroker, caller domain.Caller) *Client {
	ctx := log.NewContext(context.Background(), log.SourceKey, Source)
	ctx = log.NewContext(ctx, log.DeviceIDKey, caller.DeviceID)
	ctx = log.NewContext(ctx, log.AuthorIDKey, caller.UserID)
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		broker:    broker,
		caller:    caller,
		channelID: ChannelID(caller.DeviceID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ChannelID is the conversation channel for a device.
func ChannelID(deviceID string) string {
	return "ws:" + deviceID
}

func (c *Client) Run() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
}

// Close gracefully closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.conn.Close()
}

// IsClosed returns true if the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context is cancelled once the connection is closed.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) ChannelID() string {
	return c.channelID
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			c.sendError("unsupported_frame", "only text frames are accepted")
			continue
		}

		text := frameText(frame)
		if text == "" {
			continue
		}
		if err := c.publish(text); err != nil {
			log.WithCtx(c.ctx).Error("❌ Failed to publish inbound message", zap.String("text", text), zap.Error(err))
			c.sendError("busy", "message could not be queued")
		}
	}
}

func (c *Client) publish(text string) error {
	payload, err := json.Marshal(domain.InboundMessage{
		Source:      Source,
		AuthorID:    c.caller.UserID,
		ChannelID:   c.channelID,
		Text:        text,
		DisplayName: c.caller.DisplayName,
	})
	if err != nil {
		return err
	}
	return c.broker.Publish(c.ctx, domain.InboundTopic, "", payload)
}

// frameText accepts either a Message envelope of type "message" or a bare
// line of text.
func frameText(frame []byte) string {
	var envelope Message
	if err := json.Unmarshal(frame, &envelope); err == nil && envelope.Type != "" {
		if envelope.Type != MessageTypeMessage {
			return ""
		}
		text, _ := envelope.Data["text"].(string)
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(string(frame))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// SendMessage queues a frame for the client. A client that cannot keep up is
// disconnected.
func (c *Client) SendMessage(message []byte) error {
	if c.IsClosed() {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.Close()
		return websocket.ErrCloseSent
	}
}

func (c *Client) sendError(code, message string) {
	frame, err := json.Marshal(Message{
		Type:      MessageTypeError,
		DeviceID:  c.caller.DeviceID,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"code": code, "message": message},
	})
	if err != nil {
		return
	}
	c.SendMessage(frame)
}
