package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"shelterlink/backend/internal/models"
)

// MemoryStore is a process-local Storage used by tests and by the
// STORAGE_DRIVER=memory development mode. Rows are kept in insertion order
// and copies are returned so callers cannot mutate stored state.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]models.User
	shelters    []models.ShelterOffer
	requests    []models.ShelterRequest
	connections []models.Connection
	messages    []models.Message
	// conversation id -> pair key of its first message
	conversations map[string]string

	now func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]models.User),
		conversations: make(map[string]string),
		now:           time.Now,
	}
}

// SetClock overrides the timestamp source. Tests use it to get
// deterministic CreatedAt values.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = user.BeforeCreate(nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now()
	}
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) CreateShelter(ctx context.Context, shelter *models.ShelterOffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = shelter.BeforeCreate(nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	shelter.CreatedAt, shelter.UpdatedAt = now, now
	m.shelters = append(m.shelters, *shelter)
	return nil
}

func (m *MemoryStore) GetShelterByID(ctx context.Context, id string) (*models.ShelterOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shelters {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListActiveShelters(ctx context.Context, excludeHostID string) ([]models.ShelterOffer, error) {
	return m.filterShelters(ctx, func(s models.ShelterOffer) bool {
		return s.IsActive && s.HostID != excludeHostID
	})
}

func (m *MemoryStore) ListActiveSheltersByHost(ctx context.Context, hostID string) ([]models.ShelterOffer, error) {
	return m.filterShelters(ctx, func(s models.ShelterOffer) bool {
		return s.IsActive && s.HostID == hostID
	})
}

func (m *MemoryStore) filterShelters(ctx context.Context, keep func(models.ShelterOffer) bool) ([]models.ShelterOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ShelterOffer
	for _, s := range m.shelters {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateRequest(ctx context.Context, req *models.ShelterRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = req.BeforeCreate(nil)
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	req.CreatedAt, req.UpdatedAt = now, now
	m.requests = append(m.requests, *req)
	return nil
}

func (m *MemoryStore) GetRequestByID(ctx context.Context, id string) (*models.ShelterRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListPendingRequests(ctx context.Context) ([]models.ShelterRequest, error) {
	return m.filterRequests(ctx, func(r models.ShelterRequest) bool {
		return r.Status == models.RequestPending
	})
}

func (m *MemoryStore) ListPendingRequestsBySeeker(ctx context.Context, seekerID string) ([]models.ShelterRequest, error) {
	return m.filterRequests(ctx, func(r models.ShelterRequest) bool {
		return r.Status == models.RequestPending && r.SeekerID == seekerID
	})
}

func (m *MemoryStore) filterRequests(ctx context.Context, keep func(models.ShelterRequest) bool) ([]models.ShelterRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ShelterRequest
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateConnection(ctx context.Context, conn *models.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn.PairKey = models.PairKey(conn.RequesterID, conn.RecipientID)
	_ = conn.BeforeCreate(nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.connections {
		if c.PairKey == conn.PairKey {
			return ErrDuplicate
		}
	}
	if conn.Status == "" {
		conn.Status = models.ConnectionPending
	}
	now := m.now()
	conn.CreatedAt, conn.UpdatedAt = now, now
	m.connections = append(m.connections, *conn)
	return nil
}

func (m *MemoryStore) GetConnectionByID(ctx context.Context, id string) (*models.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.connections {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindConnectionByPair(ctx context.Context, userA, userB string) (*models.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := models.PairKey(userA, userB)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.connections {
		if c.PairKey == key {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListConnectionsForUser(ctx context.Context, userID string) ([]models.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []models.Connection
	for _, c := range m.connections {
		if c.Involves(userID) {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// TransitionConnection holds the write lock across the compare and the set,
// matching the conditional UPDATE in the postgres implementation.
func (m *MemoryStore) TransitionConnection(ctx context.Context, id string, from, to models.ConnectionStatus) (*models.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.connections {
		c := &m.connections[i]
		if c.ID != id {
			continue
		}
		if c.Status != from {
			cp := *c
			return &cp, ErrStale
		}
		c.Status = to
		c.UpdatedAt = m.now()
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = msg.BeforeCreate(nil)
	pair := models.PairKey(msg.SenderID, msg.RecipientID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if bound, ok := m.conversations[msg.ConversationID]; ok && bound != pair {
		return ErrConversationTaken
	}
	m.conversations[msg.ConversationID] = pair
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemoryStore) FirstMessageInConversation(ctx context.Context, conversationID string) (*models.Message, error) {
	msgs, err := m.filterMessages(ctx, func(msg models.Message) bool {
		return msg.ConversationID == conversationID
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}

func (m *MemoryStore) ListMessagesForUser(ctx context.Context, userID string) ([]models.Message, error) {
	msgs, err := m.filterMessages(ctx, func(msg models.Message) bool {
		return msg.SenderID == userID || msg.RecipientID == userID
	})
	if err != nil {
		return nil, err
	}
	// newest first, as the postgres query orders it
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (m *MemoryStore) ListConversationMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	return m.filterMessages(ctx, func(msg models.Message) bool {
		return msg.ConversationID == conversationID && (msg.SenderID == userID || msg.RecipientID == userID)
	})
}

// filterMessages returns matching messages oldest first.
func (m *MemoryStore) filterMessages(ctx context.Context, keep func(models.Message) bool) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []models.Message
	for _, msg := range m.messages {
		if keep(msg) {
			out = append(out, msg)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkConversationRead(ctx context.Context, conversationID, recipientID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ConversationID == conversationID && msg.RecipientID == recipientID && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MarkMessageRead(ctx context.Context, messageID, recipientID string) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ID == messageID && msg.RecipientID == recipientID {
			msg.IsRead = true
			cp := *msg
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, msg := range m.messages {
		if msg.RecipientID == recipientID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

var _ Storage = (*MemoryStore)(nil)
var _ Storage = (*Service)(nil)
