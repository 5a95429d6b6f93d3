package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/domain"
	"github.com/satriahrh/cocoa-relay/utils/log"
)

// Dispatcher is the inbound event loop. It reads InboundTopic and hands each
// message to a per-channel FIFO queue, so a channel's messages are answered
// in arrival order while different channels proceed independently.
type Dispatcher struct {
	broker    domain.MessageBroker
	chat      *ChatService
	sinks     map[string]domain.ReplySink
	queueSize int

	mu     sync.Mutex
	queues map[string]chan domain.InboundMessage
	wg     sync.WaitGroup
}

func NewDispatcher(broker domain.MessageBroker, chat *ChatService, sinks map[string]domain.ReplySink, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Dispatcher{
		broker:    broker,
		chat:      chat,
		sinks:     sinks,
		queueSize: queueSize,
		queues:    make(map[string]chan domain.InboundMessage),
	}
}

// Run blocks until ctx is cancelled or the broker closes, then drains every
// channel queue before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	events, err := d.broker.Subscribe(ctx, domain.InboundTopic, "")
	if err != nil {
		return fmt.Errorf("subscribe inbound: %w", err)
	}
	defer d.stop()

	log.WithCtx(ctx).Info("🎧 Dispatcher listening", zap.String("topic", domain.InboundTopic))
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			d.dispatch(ctx, event)
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event domain.Message) {
	var msg domain.InboundMessage
	if err := json.Unmarshal(event.Payload, &msg); err != nil {
		log.WithCtx(ctx).Error("❌ Failed to decode inbound message", zap.Error(err))
		return
	}
	if msg.IsSelf {
		return
	}
	if _, ok := d.sinks[msg.Source]; !ok {
		log.WithCtx(ctx).Error("❌ No reply sink for source", zap.String("source", msg.Source), zap.String("channel_id", msg.ChannelID))
		return
	}

	queue := d.queue(ctx, msg.ConversationKey())
	select {
	case queue <- msg:
	default:
		log.WithCtx(ctx).Error("❌ Channel queue is full, dropping message",
			zap.String("channel_id", msg.ChannelID),
			zap.String("author_id", msg.AuthorID),
			zap.String("text", msg.Text))
	}
}

func (d *Dispatcher) queue(ctx context.Context, key string) chan domain.InboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[key]
	if !ok {
		q = make(chan domain.InboundMessage, d.queueSize)
		d.queues[key] = q
		d.wg.Add(1)
		go d.work(context.WithoutCancel(ctx), q)
	}
	return q
}

func (d *Dispatcher) work(ctx context.Context, queue <-chan domain.InboundMessage) {
	defer d.wg.Done()
	for msg := range queue {
		d.handle(ctx, msg)
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg domain.InboundMessage) {
	sink := d.sinks[msg.Source]
	ctx = log.NewContext(ctx, log.SourceKey, msg.Source)
	ctx = log.NewContext(ctx, log.ChannelIDKey, msg.ChannelID)
	ctx = log.NewContext(ctx, log.AuthorIDKey, msg.AuthorID)

	defer func() {
		if r := recover(); r != nil {
			log.WithCtx(ctx).Error("❌ Handler panicked", zap.Any("panic", r), zap.String("text", msg.Text))
			if err := sink.Send(ctx, msg.ChannelID, FallbackReply); err != nil {
				log.WithCtx(ctx).Error("❌ Failed to deliver fallback", zap.Error(err))
			}
		}
	}()
	d.chat.Handle(ctx, msg, sink)
}

// stop closes all queues and waits for in-flight messages to finish.
func (d *Dispatcher) stop() {
	d.mu.Lock()
	for key, q := range d.queues {
		close(q)
		delete(d.queues, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
