package chathub

import (
	"context"
	"sync/atomic"

	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/models"

	"go.uber.org/zap"
)

// Pusher is the push surface of the hub.
type Pusher interface {
	Notify(userID string, event models.Event)
	BroadcastToConversation(conversationID string, event models.Event)
}

type outboxItem struct {
	userID         string
	conversationID string
	event          models.Event
}

// Outbox decouples services from the hub. Services enqueue events after
// their state change is stored; a single worker hands them to the hub in
// enqueue order. Enqueue never blocks: a full queue drops the event.
type Outbox struct {
	target  Pusher
	queue   chan outboxItem
	logger  *zap.Logger
	dropped atomic.Int64
}

func NewOutbox(target Pusher, size int, logger *zap.Logger) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{
		target: target,
		queue:  make(chan outboxItem, size),
		logger: logging.OrNop(logger).Named("outbox"),
	}
}

func (o *Outbox) Notify(userID string, event models.Event) {
	o.enqueue(outboxItem{userID: userID, event: event})
}

func (o *Outbox) BroadcastToConversation(conversationID string, event models.Event) {
	o.enqueue(outboxItem{conversationID: conversationID, event: event})
}

func (o *Outbox) enqueue(item outboxItem) {
	select {
	case o.queue <- item:
	default:
		o.dropped.Add(1)
		o.logger.Warn("outbox full, event dropped",
			zap.String("type", item.event.Type),
			zap.String("user_id", item.userID),
			zap.String("conversation_id", item.conversationID))
	}
}

// Dropped is the number of events discarded because the queue was full.
func (o *Outbox) Dropped() int64 { return o.dropped.Load() }

// Pending is the number of queued events.
func (o *Outbox) Pending() int { return len(o.queue) }

// Run drains the queue until ctx is done, then flushes what is already queued.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case item := <-o.queue:
			o.dispatch(item)
		case <-ctx.Done():
			for {
				select {
				case item := <-o.queue:
					o.dispatch(item)
				default:
					return
				}
			}
		}
	}
}

func (o *Outbox) dispatch(item outboxItem) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("dispatch panicked", zap.Any("panic", r), zap.String("type", item.event.Type))
		}
	}()
	if item.conversationID != "" {
		o.target.BroadcastToConversation(item.conversationID, item.event)
		return
	}
	o.target.Notify(item.userID, item.event)
}
