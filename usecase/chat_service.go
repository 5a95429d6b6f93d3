package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/domain"
	"github.com/satriahrh/cocoa-relay/utils/log"
)

// FallbackReply is sent whenever a completion fails.
const FallbackReply = "Maaf, terjadi kesalahan saat memproses permintaan Anda."

type ChannelState int

const (
	StateIdle ChannelState = iota
	StateAwaitingCompletion
)

func (s ChannelState) String() string {
	if s == StateAwaitingCompletion {
		return "AWAITING_COMPLETION"
	}
	return "IDLE"
}

// ChatService owns the per-channel conversation: history, prompt, completion,
// formatting. Work on one channel is serialized; channels run in parallel.
type ChatService struct {
	llm       domain.CompletionProvider
	history   *HistoryStore
	prompts   *PromptAssembler
	formatter *Formatter
	hasher    domain.Hasher

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	states map[string]ChannelState
}

func NewChatService(
	persona *domain.Persona,
	history *HistoryStore,
	gen domain.CompletionProvider,
	hasher domain.Hasher,
) *ChatService {
	return &ChatService{
		llm:       gen,
		history:   history,
		prompts:   NewPromptAssembler(persona, history),
		formatter: NewFormatter(persona.Style),
		hasher:    hasher,
		locks:     make(map[string]*sync.Mutex),
		states:    make(map[string]ChannelState),
	}
}

// Handle answers msg through sink. Ignored messages produce nothing.
func (s *ChatService) Handle(ctx context.Context, msg domain.InboundMessage, sink domain.ReplySink) {
	reply, ok := s.Reply(ctx, msg)
	if !ok {
		return
	}
	if err := sink.Send(ctx, msg.ChannelID, reply); err != nil {
		log.WithCtx(ctx).Error("❌ Failed to deliver reply", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// Reply returns the text to send back, or false when msg must be ignored.
// Provider failures yield FallbackReply and leave history untouched.
func (s *ChatService) Reply(ctx context.Context, msg domain.InboundMessage) (string, bool) {
	if msg.IsSelf {
		return "", false
	}
	if strings.TrimSpace(msg.Text) == "" {
		log.WithCtx(ctx).Debug("Ignoring empty message", zap.String("channel_id", msg.ChannelID))
		return "", false
	}

	key := msg.ConversationKey()
	unlock := s.lock(key)
	defer unlock()

	s.setState(key, StateAwaitingCompletion)
	defer s.setState(key, StateIdle)

	prompt := s.prompts.Build(key, msg.Text, displayName(msg))

	started := time.Now()
	raw, err := s.llm.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = &domain.ProviderError{Provider: "completion", Reason: "empty response"}
	}
	if err != nil {
		fields := []zap.Field{
			zap.String("channel_id", msg.ChannelID),
			zap.String("author_id", msg.AuthorID),
			zap.String("text", msg.Text),
			zap.String("prompt", domain.Fingerprint(s.hasher, prompt)),
			zap.Error(err),
		}
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			fields = append(fields, zap.String("provider", perr.Provider), zap.String("reason", perr.Reason))
		}
		log.WithCtx(ctx).Error("❌ Completion failed", fields...)
		return FallbackReply, true
	}

	s.history.Append(key, msg.Text, raw)
	log.WithCtx(ctx).Debug("💬 Completion done",
		zap.String("channel_id", msg.ChannelID),
		zap.Int("history", s.history.Len(key)),
		zap.Duration("took", time.Since(started)))

	return s.formatter.Format(raw), true
}

// State reports where the conversation (a domain.ConversationKey) is in its
// request cycle.
func (s *ChatService) State(key string) ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

func (s *ChatService) History() *HistoryStore { return s.history }

func (s *ChatService) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *ChatService) setState(key string, state ChannelState) {
	s.mu.Lock()
	s.states[key] = state
	s.mu.Unlock()
}

func displayName(msg domain.InboundMessage) string {
	if msg.DisplayName != "" {
		return msg.DisplayName
	}
	return msg.AuthorID
}
