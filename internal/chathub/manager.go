// Package chathub is the realtime delivery layer: a registry of live
// sessions, conversation rooms and best-effort push of events to them.
package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const brokerTimeout = 2 * time.Second

// RoomAuthorizer decides whether userID may subscribe to a conversation room.
type RoomAuthorizer func(ctx context.Context, userID, conversationID string) (bool, error)

// ManagerService keeps one session per user and the room memberships of each
// session. Pushes take the read lock only; register, unregister and room
// changes take the write lock.
type ManagerService struct {
	mu       sync.RWMutex
	sessions map[string]Client
	rooms    map[string]map[Client]struct{}
	joined   map[Client]map[string]struct{}

	broker     Broker
	instanceID string

	// Authorize guards JoinConversation. Nil admits everyone.
	Authorize RoomAuthorizer

	logger  *zap.Logger
	dropped atomic.Int64
}

// NewManagerService створює хаб. broker може бути nil, тоді доставка
// залишається в межах процесу.
func NewManagerService(broker Broker, logger *zap.Logger) *ManagerService {
	return &ManagerService{
		sessions:   make(map[string]Client),
		rooms:      make(map[string]map[Client]struct{}),
		joined:     make(map[Client]map[string]struct{}),
		broker:     broker,
		instanceID: uuid.NewString(),
		logger:     logging.OrNop(logger).Named("chathub"),
	}
}

// InstanceID identifies this process on the broker.
func (m *ManagerService) InstanceID() string { return m.instanceID }

// Register makes c the session of its user. An earlier session of the same
// user is closed and loses its room memberships.
func (m *ManagerService) Register(c Client) {
	userID := c.GetUserID()

	m.mu.Lock()
	prev, existed := m.sessions[userID]
	if existed && prev != c {
		m.dropMembershipsLocked(prev)
		prev.Close()
	}
	m.sessions[userID] = c
	m.mu.Unlock()

	if existed && prev != c {
		m.logger.Info("session replaced", zap.String("user_id", userID))
	} else {
		m.logger.Info("session registered", zap.String("user_id", userID))
	}
	if !existed {
		m.setPresence(userID, true)
	}
}

// Unregister removes c if it is still the current session of its user.
func (m *ManagerService) Unregister(c Client) {
	userID := c.GetUserID()

	m.mu.Lock()
	current, ok := m.sessions[userID]
	isCurrent := ok && current == c
	if isCurrent {
		delete(m.sessions, userID)
	}
	m.dropMembershipsLocked(c)
	c.Close()
	m.mu.Unlock()

	if isCurrent {
		m.logger.Info("session unregistered", zap.String("user_id", userID))
		m.setPresence(userID, false)
	}
}

func (m *ManagerService) dropMembershipsLocked(c Client) {
	for convID := range m.joined[c] {
		if members := m.rooms[convID]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(m.rooms, convID)
			}
		}
	}
	delete(m.joined, c)
}

func (m *ManagerService) setPresence(userID string, online bool) {
	if m.broker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), brokerTimeout)
	defer cancel()
	if err := m.broker.SetOnline(ctx, userID, online); err != nil {
		m.logger.Warn("presence update failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
}

// JoinConversation subscribes the current session of userID to a room.
// Joining twice is a no-op.
func (m *ManagerService) JoinConversation(ctx context.Context, userID, conversationID string) error {
	return m.join(ctx, userID, nil, conversationID)
}

// join adds the session of userID to the room. When from is set the join
// applies only while from is still that session; a replaced session's frame
// changes nothing.
func (m *ManagerService) join(ctx context.Context, userID string, from Client, conversationID string) error {
	if conversationID == "" {
		return apperr.Validation("conversation_id is required")
	}
	if m.Authorize != nil {
		ok, err := m.Authorize(ctx, userID, conversationID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("not a participant of conversation %s", conversationID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[userID]
	if !ok {
		return apperr.NotFound("no active session for user %s", userID)
	}
	if from != nil && from != c {
		return nil
	}
	members := m.rooms[conversationID]
	if members == nil {
		members = make(map[Client]struct{})
		m.rooms[conversationID] = members
	}
	members[c] = struct{}{}
	if m.joined[c] == nil {
		m.joined[c] = make(map[string]struct{})
	}
	m.joined[c][conversationID] = struct{}{}
	return nil
}

// LeaveConversation unsubscribes the current session of userID. Leaving a
// room one is not in is a no-op.
func (m *ManagerService) LeaveConversation(userID, conversationID string) {
	m.leave(userID, nil, conversationID)
}

func (m *ManagerService) leave(userID string, from Client, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[userID]
	if !ok || (from != nil && from != c) {
		return
	}
	if members := m.rooms[conversationID]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(m.rooms, conversationID)
		}
	}
	delete(m.joined[c], conversationID)
}

// Notify pushes event to the personal channel of userID, here and on every
// other instance. Users without a session miss it.
func (m *ManagerService) Notify(userID string, event models.Event) {
	data, ok := m.encode(event)
	if !ok {
		return
	}
	m.deliverToUser(userID, data)
	m.publish(Envelope{Target: TargetUser, Key: userID, Payload: data})
}

// BroadcastToConversation pushes event to every session in the room.
func (m *ManagerService) BroadcastToConversation(conversationID string, event models.Event) {
	data, ok := m.encode(event)
	if !ok {
		return
	}
	m.deliverToRoom(conversationID, data)
	m.publish(Envelope{Target: TargetRoom, Key: conversationID, Payload: data})
}

// RelayTyping tells recipientID that userID is typing in conversationID.
func (m *ManagerService) RelayTyping(userID, recipientID, conversationID string) {
	m.Notify(recipientID, models.Event{
		Type: models.EventUserTyping,
		Data: models.TypingEvent{UserID: userID, ConversationID: conversationID},
	})
}

// RelayStopTyping tells recipientID that userID stopped typing.
func (m *ManagerService) RelayStopTyping(userID, recipientID, conversationID string) {
	m.Notify(recipientID, models.Event{
		Type: models.EventUserStopTyping,
		Data: models.TypingEvent{UserID: userID, ConversationID: conversationID},
	})
}

// IsOnline checks the local registry first, then the shared presence set.
func (m *ManagerService) IsOnline(ctx context.Context, userID string) bool {
	m.mu.RLock()
	_, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok || m.broker == nil {
		return ok
	}
	online, err := m.broker.IsOnline(ctx, userID)
	if err != nil {
		m.logger.Warn("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return online
}

// OnlineCount returns the number of users with a session, across instances
// when a broker is configured.
func (m *ManagerService) OnlineCount(ctx context.Context) int {
	if m.broker != nil {
		n, err := m.broker.OnlineCount(ctx)
		if err == nil {
			return int(n)
		}
		m.logger.Warn("presence count failed", zap.Error(err))
	}
	return m.LocalCount()
}

// LocalCount is the number of sessions held by this process.
func (m *ManagerService) LocalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Dropped is the number of frames discarded because a session buffer was full.
func (m *ManagerService) Dropped() int64 { return m.dropped.Load() }

func (m *ManagerService) encode(event models.Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("encode event", zap.String("type", event.Type), zap.Error(err))
		return nil, false
	}
	return data, true
}

// send never blocks. Callers hold at least the read lock, so Close cannot
// run concurrently.
func (m *ManagerService) send(c Client, data []byte) {
	select {
	case c.GetSendChannel() <- data:
	default:
		m.dropped.Add(1)
		m.logger.Warn("session buffer full, frame dropped", zap.String("user_id", c.GetUserID()))
	}
}

func (m *ManagerService) deliverToUser(userID string, data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.sessions[userID]; ok {
		m.send(c, data)
	}
}

func (m *ManagerService) deliverToRoom(conversationID string, data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.rooms[conversationID] {
		m.send(c, data)
	}
}

// sendTo pushes an event to one specific session, not to whoever currently
// holds the user's slot.
func (m *ManagerService) sendTo(c Client, event models.Event) {
	data, ok := m.encode(event)
	if !ok {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if current, ok := m.sessions[c.GetUserID()]; ok && current == c {
		m.send(c, data)
	}
}

func (m *ManagerService) publish(env Envelope) {
	if m.broker == nil {
		return
	}
	env.Origin = m.instanceID
	ctx, cancel := context.WithTimeout(context.Background(), brokerTimeout)
	defer cancel()
	if err := m.broker.Publish(ctx, env); err != nil {
		m.logger.Warn("broker publish failed", zap.String("target", env.Target), zap.String("key", env.Key), zap.Error(err))
	}
}

// HandleFrame processes one inbound frame from session c.
func (m *ManagerService) HandleFrame(ctx context.Context, c Client, raw []byte) {
	var frame models.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		m.logger.Debug("invalid frame", zap.String("user_id", c.GetUserID()), zap.Error(err))
		m.sendTo(c, models.Event{Type: models.EventError, Data: models.ErrorEvent{Message: "invalid frame"}})
		return
	}
	userID := c.GetUserID()

	switch frame.Type {
	case models.FrameJoinConversation:
		if err := m.join(ctx, userID, c, frame.ConversationID); err != nil {
			m.logger.Info("join refused",
				zap.String("user_id", userID),
				zap.String("conversation_id", frame.ConversationID),
				zap.Error(err))
			m.sendTo(c, models.Event{Type: models.EventError, Data: models.ErrorEvent{Message: "cannot join conversation", Frame: frame.Type}})
		}
	case models.FrameLeaveConversation:
		m.leave(userID, c, frame.ConversationID)
	case models.FrameTyping, models.FrameStopTyping:
		if frame.RecipientID == "" || frame.RecipientID == userID {
			return
		}
		if frame.Type == models.FrameTyping {
			m.RelayTyping(userID, frame.RecipientID, frame.ConversationID)
		} else {
			m.RelayStopTyping(userID, frame.RecipientID, frame.ConversationID)
		}
	default:
		m.sendTo(c, models.Event{Type: models.EventError, Data: models.ErrorEvent{Message: "unknown frame type", Frame: frame.Type}})
	}
}

// Run relays envelopes published by other instances to local sessions until
// ctx is done. Without a broker it only waits for ctx.
func (m *ManagerService) Run(ctx context.Context) error {
	if m.broker == nil {
		<-ctx.Done()
		return nil
	}
	envelopes, err := m.broker.Subscribe(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("broker subscription started", zap.String("instance_id", m.instanceID))
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envelopes:
			if !ok {
				return nil
			}
			m.deliverRemote(env)
		}
	}
}

func (m *ManagerService) deliverRemote(env Envelope) {
	if env.Origin == m.instanceID {
		return
	}
	switch env.Target {
	case TargetUser:
		m.deliverToUser(env.Key, env.Payload)
	case TargetRoom:
		m.deliverToRoom(env.Key, env.Payload)
	default:
		m.logger.Debug("unknown envelope target", zap.String("target", env.Target))
	}
}
