package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/domain"
	"github.com/satriahrh/cocoa-relay/utils/log"
)

const (
	Source = "discord"

	// maxMessageRunes is Discord's per-message content limit.
	maxMessageRunes = 2000
)

// Bot connects to the Discord gateway, publishes every MessageCreate to the
// inbound topic and sends replies back to channels.
type Bot struct {
	session *discordgo.Session
	broker  domain.MessageBroker
}

func New(token string, broker domain.MessageBroker) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{session: session, broker: broker}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run opens the gateway connection and keeps it until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	<-ctx.Done()
	log.WithCtx(ctx).Info("🔒 Closing discord session")
	return b.session.Close()
}

// Send implements domain.ReplySink.
func (b *Bot) Send(ctx context.Context, channelID string, text string) error {
	for _, chunk := range splitMessage(text, maxMessageRunes) {
		if _, err := b.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send to %s: %w", channelID, err)
		}
	}
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.With(zap.String("source", Source)).Info("✅ Logged in", zap.String("user", r.User.String()))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	msg, ok := toInbound(selfID, m)
	if !ok || msg.IsSelf {
		return
	}

	ctx := log.NewContext(context.Background(), log.SourceKey, Source)
	payload, err := json.Marshal(msg)
	if err != nil {
		log.WithCtx(ctx).Error("❌ Failed to encode inbound message", zap.Error(err))
		return
	}
	if err := b.broker.Publish(ctx, domain.InboundTopic, "", payload); err != nil {
		log.WithCtx(ctx).Error("❌ Failed to publish inbound message",
			zap.String("channel_id", msg.ChannelID),
			zap.String("text", msg.Text),
			zap.Error(err))
	}
}

func toInbound(selfID string, m *discordgo.MessageCreate) (domain.InboundMessage, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return domain.InboundMessage{}, false
	}

	name := m.Author.GlobalName
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	if name == "" {
		name = m.Author.Username
	}

	return domain.InboundMessage{
		Source:      Source,
		AuthorID:    m.Author.ID,
		IsSelf:      selfID != "" && m.Author.ID == selfID,
		ChannelID:   m.ChannelID,
		Text:        m.Content,
		DisplayName: name,
	}, true
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break on a newline or a space.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		if next := runes[limit]; next != '\n' && next != ' ' {
			window := string(runes[:limit])
			if i := strings.LastIndexAny(window, "\n "); i > 0 {
				cut = utf8.RuneCountInString(window[:i])
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == '\n' || runes[0] == ' ') {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
