package chathub_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shelterlink/backend/internal/chathub"
	"shelterlink/backend/internal/models"
)

type MockClient struct {
	userID      string
	RecvChannel chan []byte
	closed      atomic.Bool
	closeOnce   sync.Once
}

func newMockClient(userID string) *MockClient {
	return newMockClientWithBuffer(userID, 10)
}

func newMockClientWithBuffer(userID string, size int) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan []byte, size),
	}
}

func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) GetSendChannel() chan<- []byte { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.RecvChannel)
	})
}

func (c *MockClient) IsClosed() bool { return c.closed.Load() }

// next waits briefly for one frame and decodes it.
func (c *MockClient) next(t *testing.T) (models.Event, bool) {
	t.Helper()
	select {
	case data, ok := <-c.RecvChannel:
		if !ok {
			return models.Event{}, false
		}
		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return ev, true
	case <-time.After(200 * time.Millisecond):
		return models.Event{}, false
	}
}

// empty reports whether no frame arrives within a short window.
func (c *MockClient) empty() bool {
	select {
	case <-c.RecvChannel:
		return false
	case <-time.After(50 * time.Millisecond):
		return true
	}
}

// memoryBroker is an in-process Broker shared by several hubs.
type memoryBroker struct {
	mu       sync.Mutex
	subs     []chan chathub.Envelope
	presence map[string]int
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{presence: make(map[string]int)}
}

func (b *memoryBroker) Publish(_ context.Context, env chathub.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context) (<-chan chathub.Envelope, error) {
	ch := make(chan chathub.Envelope, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch, nil
}

func (b *memoryBroker) SetOnline(_ context.Context, userID string, online bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if online {
		b.presence[userID]++
	} else if b.presence[userID]--; b.presence[userID] <= 0 {
		delete(b.presence, userID)
	}
	return nil
}

func (b *memoryBroker) IsOnline(_ context.Context, userID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presence[userID] > 0, nil
}

func (b *memoryBroker) OnlineCount(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.presence)), nil
}
