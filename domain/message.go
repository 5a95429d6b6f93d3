package domain

import "context"

// InboundMessage is what every chat surface delivers to the orchestrator.
type InboundMessage struct {
	Source      string `json:"source"`
	AuthorID    string `json:"author_id"`
	IsSelf      bool   `json:"is_self"`
	ChannelID   string `json:"channel_id"`
	Text        string `json:"text"`
	DisplayName string `json:"display_name"`
}

// ConversationKey identifies one conversation across every chat surface.
// Channel ids are only unique within their source.
func ConversationKey(source, channelID string) string {
	return source + "/" + channelID
}

// ConversationKey is the key history, locks and queues are held under.
func (m InboundMessage) ConversationKey() string {
	return ConversationKey(m.Source, m.ChannelID)
}

// ReplySink delivers text back to a channel. Delivery failures belong to the
// sink; callers only log them.
type ReplySink interface {
	Send(ctx context.Context, channelID string, text string) error
}

// Caller is the authenticated principal behind an HTTP or WebSocket request.
type Caller struct {
	UserID      string
	DisplayName string
	DeviceID    string
}

// CallerContextKey is where auth middleware stores the Caller on an echo.Context.
const CallerContextKey = "caller"
