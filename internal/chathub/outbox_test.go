package chathub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"shelterlink/backend/internal/chathub"
	"shelterlink/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	mu    sync.Mutex
	calls []string
	panic bool
}

func (p *recordingPusher) Notify(userID string, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panic {
		panic("transport down")
	}
	p.calls = append(p.calls, "user:"+userID+":"+event.Type)
}

func (p *recordingPusher) BroadcastToConversation(conversationID string, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "room:"+conversationID+":"+event.Type)
}

func (p *recordingPusher) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func TestOutbox_DispatchesInOrder(t *testing.T) {
	target := &recordingPusher{}
	outbox := chathub.NewOutbox(target, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go outbox.Run(ctx)

	outbox.BroadcastToConversation("c1", models.Event{Type: models.EventNewMessage})
	outbox.Notify("B", models.Event{Type: models.EventNotification})

	require.Eventually(t, func() bool { return len(target.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"room:c1:new_message", "user:B:notification"}, target.snapshot())
}

func TestOutbox_FullQueueDrops(t *testing.T) {
	target := &recordingPusher{}
	outbox := chathub.NewOutbox(target, 2, nil)

	for i := 0; i < 5; i++ {
		outbox.Notify("B", models.Event{Type: models.EventNotification})
	}

	assert.Equal(t, 2, outbox.Pending())
	assert.Equal(t, int64(3), outbox.Dropped())
}

func TestOutbox_FlushesOnShutdown(t *testing.T) {
	target := &recordingPusher{}
	outbox := chathub.NewOutbox(target, 4, nil)
	outbox.Notify("A", models.Event{Type: models.EventConnectionUpdate})
	outbox.Notify("B", models.Event{Type: models.EventConnectionUpdate})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outbox.Run(ctx)

	assert.Len(t, target.snapshot(), 2)
	assert.Zero(t, outbox.Pending())
}

func TestOutbox_SurvivesPushPanic(t *testing.T) {
	target := &recordingPusher{panic: true}
	outbox := chathub.NewOutbox(target, 4, nil)
	outbox.Notify("A", models.Event{Type: models.EventNotification})
	outbox.BroadcastToConversation("c1", models.Event{Type: models.EventNewMessage})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { outbox.Run(ctx) })
	assert.Equal(t, []string{"room:c1:new_message"}, target.snapshot())
}

func TestOutbox_FeedsHub(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil)
	client := newMockClient("user_B")
	hub.Register(client)
	outbox := chathub.NewOutbox(hub, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go outbox.Run(ctx)

	outbox.Notify("user_B", models.Event{Type: models.EventConnectionRequest})
	ev, ok := client.next(t)
	require.True(t, ok)
	assert.Equal(t, models.EventConnectionRequest, ev.Type)
}
