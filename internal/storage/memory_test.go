package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"shelterlink/backend/internal/models"
	"shelterlink/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateConnection_RejectsEitherOrdering(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	require.NoError(t, s.CreateConnection(ctx, &models.Connection{RequesterID: "A", RecipientID: "B"}))

	err := s.CreateConnection(ctx, &models.Connection{RequesterID: "A", RecipientID: "B"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = s.CreateConnection(ctx, &models.Connection{RequesterID: "B", RecipientID: "A"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	found, err := s.FindConnectionByPair(ctx, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPending, found.Status)
}

func TestMemoryStore_TransitionConnection(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	conn := &models.Connection{RequesterID: "A", RecipientID: "B"}
	require.NoError(t, s.CreateConnection(ctx, conn))

	updated, err := s.TransitionConnection(ctx, conn.ID, models.ConnectionPending, models.ConnectionApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionApproved, updated.Status)

	stale, err := s.TransitionConnection(ctx, conn.ID, models.ConnectionPending, models.ConnectionRejected)
	assert.ErrorIs(t, err, storage.ErrStale)
	assert.Equal(t, models.ConnectionApproved, stale.Status)

	_, err = s.TransitionConnection(ctx, "missing", models.ConnectionPending, models.ConnectionApproved)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryStore_TransitionConnection_SingleWinnerUnderRace(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	conn := &models.Connection{RequesterID: "A", RecipientID: "B"}
	require.NoError(t, s.CreateConnection(ctx, conn))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := models.ConnectionApproved
			if i%2 == 0 {
				to = models.ConnectionRejected
			}
			if _, err := s.TransitionConnection(ctx, conn.ID, models.ConnectionPending, to); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryStore_MessagesOrderingAndReadMarking(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	require.NoError(t, s.CreateMessage(ctx, &models.Message{ConversationID: "c1", SenderID: "A", RecipientID: "B", Text: "one"}))
	require.NoError(t, s.CreateMessage(ctx, &models.Message{ConversationID: "c1", SenderID: "B", RecipientID: "A", Text: "two"}))
	require.NoError(t, s.CreateMessage(ctx, &models.Message{ConversationID: "c1", SenderID: "A", RecipientID: "B", Text: "three"}))

	msgs, err := s.ListConversationMessages(ctx, "c1", "B")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "three", msgs[2].Text)

	unread, err := s.CountUnread(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	n, err := s.MarkConversationRead(ctx, "c1", "B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err = s.CountUnread(ctx, "B")
	require.NoError(t, err)
	assert.Zero(t, unread)

	newest, err := s.ListMessagesForUser(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "three", newest[0].Text)
}

func TestMemoryStore_CreateMessage_BindsConversationToFirstPair(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	require.NoError(t, s.CreateMessage(ctx, &models.Message{ConversationID: "c1", SenderID: "A", RecipientID: "B", Text: "one"}))
	require.NoError(t, s.CreateMessage(ctx, &models.Message{ConversationID: "c1", SenderID: "B", RecipientID: "A", Text: "two"}))

	err := s.CreateMessage(ctx, &models.Message{ConversationID: "c1", SenderID: "C", RecipientID: "B", Text: "three"})
	assert.ErrorIs(t, err, storage.ErrConversationTaken)

	msgs, err := s.ListConversationMessages(ctx, "c1", "B")
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "rejected message is not stored")
}

func TestMemoryStore_ListActiveShelters_ExcludesHostAndInactive(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	require.NoError(t, s.CreateShelter(ctx, &models.ShelterOffer{HostID: "H1", IsActive: true}))
	require.NoError(t, s.CreateShelter(ctx, &models.ShelterOffer{HostID: "H2", IsActive: true}))
	require.NoError(t, s.CreateShelter(ctx, &models.ShelterOffer{HostID: "H3", IsActive: false}))

	shelters, err := s.ListActiveShelters(ctx, "H1")
	require.NoError(t, err)
	require.Len(t, shelters, 1)
	assert.Equal(t, "H2", shelters[0].HostID)
}

func TestMemoryStore_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := storage.NewMemoryStore()

	_, err := s.ListPendingRequests(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
