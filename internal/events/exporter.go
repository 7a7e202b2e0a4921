// Package events exports personal notifications (connection requests,
// decisions and new-message alerts) to a message queue so out-of-band
// notifiers such as email or SMS workers can reach users who are offline.
// Export is best effort: a failed publish is logged and the record dropped.
package events

import (
	"context"
	"sync/atomic"
	"time"

	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/models"

	"go.uber.org/zap"
)

// Record is one exported notification.
type Record struct {
	UserID string       `json:"user_id"`
	Event  models.Event `json:"event"`
	At     time.Time    `json:"at"`
}

// Sink delivers records to the queue.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// exported lists the event types worth waking an offline user for.
var exported = map[string]bool{
	models.EventConnectionRequest: true,
	models.EventConnectionUpdate:  true,
	models.EventNotification:      true,
}

const publishTimeout = 5 * time.Second

// Exporter buffers records and publishes them from a single worker, so
// Notify never blocks the caller.
type Exporter struct {
	sink    Sink
	queue   chan Record
	now     func() time.Time
	logger  *zap.Logger
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewExporter(sink Sink, size int, logger *zap.Logger) *Exporter {
	if size <= 0 {
		size = 1
	}
	return &Exporter{
		sink:   sink,
		queue:  make(chan Record, size),
		now:    time.Now,
		logger: logging.OrNop(logger).Named("events"),
	}
}

// Notify queues event for export when its type is exported.
func (e *Exporter) Notify(userID string, event models.Event) {
	if !exported[event.Type] {
		return
	}
	select {
	case e.queue <- Record{UserID: userID, Event: event, At: e.now().UTC()}:
	default:
		e.dropped.Add(1)
		e.logger.Warn("export queue full, record dropped",
			zap.String("user_id", userID),
			zap.String("type", event.Type))
	}
}

// Dropped counts records discarded because the queue was full.
func (e *Exporter) Dropped() int64 { return e.dropped.Load() }

// Failed counts records the sink rejected.
func (e *Exporter) Failed() int64 { return e.failed.Load() }

// Run publishes queued records until ctx is done, then drains what is left
// with a fresh deadline per record.
func (e *Exporter) Run(ctx context.Context) {
	for {
		select {
		case rec := <-e.queue:
			e.publish(ctx, rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-e.queue:
					e.publish(context.Background(), rec)
				default:
					return
				}
			}
		}
	}
}

func (e *Exporter) publish(parent context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(parent, publishTimeout)
	defer cancel()
	if err := e.sink.Publish(ctx, rec); err != nil {
		e.failed.Add(1)
		e.logger.Warn("export failed",
			zap.String("user_id", rec.UserID),
			zap.String("type", rec.Event.Type),
			zap.Error(err))
	}
}

// Pusher is the realtime side that Tee forwards to unchanged.
type Pusher interface {
	Notify(userID string, event models.Event)
	BroadcastToConversation(conversationID string, event models.Event)
}

// Tee forwards everything to Primary and personal notifications to Export
// as well. Room broadcasts are not exported.
type Tee struct {
	Primary Pusher
	Export  *Exporter
}

func (t Tee) Notify(userID string, event models.Event) {
	t.Primary.Notify(userID, event)
	if t.Export != nil {
		t.Export.Notify(userID, event)
	}
}

func (t Tee) BroadcastToConversation(conversationID string, event models.Event) {
	t.Primary.BroadcastToConversation(conversationID, event)
}
