// Package messaging persists chat messages between connected users and
// hands them to the realtime layer.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/localization"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/models"
	"shelterlink/backend/internal/storage"

	"go.uber.org/zap"
)

// NotificationNewMessage is the Kind of the personal notification sent with
// every accepted message.
const NotificationNewMessage = "new_message"

// Notifier is the push side of the realtime layer. Calls must not block.
type Notifier interface {
	Notify(userID string, event models.Event)
	BroadcastToConversation(conversationID string, event models.Event)
}

// SendInput is what a caller supplies to Send.
type SendInput struct {
	RecipientID    string
	ConversationID string
	Text           string
}

type Service struct {
	Storage storage.Storage
	// Texts renders notification strings in the recipient's language.
	Texts    *localization.Localizer
	notifier Notifier
	logger   *zap.Logger
}

func NewService(s storage.Storage, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		Storage:  s,
		Texts:    localization.Default(),
		notifier: notifier,
		logger:   logging.OrNop(logger).Named("messaging"),
	}
}

// ConversationIDFor returns the canonical conversation id for two users.
func (s *Service) ConversationIDFor(userA, userB string) string {
	return models.ConversationIDFor(userA, userB)
}

// Send persists a message from senderID. The pair must hold an APPROVED
// connection at the moment of the call.
func (s *Service) Send(ctx context.Context, senderID string, in SendInput) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	switch {
	case in.RecipientID == "":
		return nil, apperr.Validation("recipientId is required")
	case in.ConversationID == "":
		return nil, apperr.Validation("conversationId is required")
	case text == "":
		return nil, apperr.Validation("text is required")
	case in.RecipientID == senderID:
		return nil, apperr.Validation("cannot send a message to yourself")
	case !models.ValidUserID(in.RecipientID):
		return nil, apperr.Validation("recipientId %q is not a valid user id", in.RecipientID)
	case models.IsCanonicalConversationID(in.ConversationID) &&
		in.ConversationID != models.ConversationIDFor(senderID, in.RecipientID):
		return nil, apperr.Validation("conversation %s belongs to other participants", in.ConversationID)
	}

	recipient, err := s.Storage.GetUserByID(ctx, in.RecipientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("user %s not found", in.RecipientID)
		}
		return nil, fmt.Errorf("lookup recipient: %w", err)
	}

	conn, err := s.Storage.FindConnectionByPair(ctx, senderID, in.RecipientID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check connection: %w", err)
	}
	if conn == nil || conn.Status != models.ConnectionApproved {
		return nil, apperr.Forbidden("you must be connected with this user to send messages").
			WithHint(apperr.HintRequestConnection)
	}

	msg := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		RecipientID:    in.RecipientID,
		Text:           text,
	}
	if err := s.Storage.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrConversationTaken) {
			return nil, apperr.Validation("conversation %s belongs to other participants", in.ConversationID)
		}
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.publish(ctx, msg, recipient.Language)
	return msg, nil
}

// publish runs after the message is stored; nothing here can fail the send.
func (s *Service) publish(ctx context.Context, msg *models.Message, lang string) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToConversation(msg.ConversationID, models.Event{Type: models.EventNewMessage, Data: msg})

	senderName := msg.SenderID
	if sender, err := s.Storage.GetUserByID(ctx, msg.SenderID); err == nil && sender.Name != "" {
		senderName = sender.Name
	} else if err != nil {
		s.logger.Debug("sender lookup for notification failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
	}
	s.notifier.Notify(msg.RecipientID, models.Event{
		Type: models.EventNotification,
		Data: models.Notification{
			Kind:           NotificationNewMessage,
			Text:           s.Texts.Format(lang, localization.KeyNewMessage, senderName),
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			SenderName:     senderName,
		},
	})
}

// ListConversations groups every message of userID by conversation, most
// recently active first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	msgs, err := s.Storage.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	index := make(map[string]int)
	out := make([]models.ConversationSummary, 0)
	for i := range msgs {
		m := &msgs[i]
		pos, seen := index[m.ConversationID]
		if !seen {
			// msgs are newest first, so the first hit is the preview
			pos = len(out)
			index[m.ConversationID] = pos
			out = append(out, models.ConversationSummary{
				ConversationID: m.ConversationID,
				OtherUserID:    m.Counterpart(userID),
				LastMessage:    *m,
			})
		}
		if m.RecipientID == userID && !m.IsRead {
			out[pos].UnreadCount++
		}
	}
	return out, nil
}

// ListMessages returns the conversation oldest first and marks everything
// addressed to userID as read.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if conversationID == "" {
		return nil, apperr.Validation("conversationId is required")
	}
	msgs, err := s.Storage.ListConversationMessages(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}

	marked, err := s.Storage.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	for i := range msgs {
		if msgs[i].RecipientID == userID {
			msgs[i].IsRead = true
		}
	}
	if marked > 0 {
		s.logger.Debug("messages marked read",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", userID),
			zap.Int64("count", marked))
	}
	return msgs, nil
}

// MarkRead acknowledges one message. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, userID, messageID string) (*models.Message, error) {
	msg, err := s.Storage.MarkMessageRead(ctx, messageID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("message %s not found", messageID)
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return msg, nil
}

// UnreadCount is the number of unread messages addressed to userID.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.Storage.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// CanJoin reports whether userID may subscribe to the conversation room.
// A canonical id is open to the two users it names. Any other id is open to
// the participants of its history, and closed while it has none.
func (s *Service) CanJoin(ctx context.Context, userID, conversationID string) (bool, error) {
	if models.IsCanonicalConversationID(conversationID) {
		a, b, ok := models.ConversationParticipants(conversationID)
		return ok && (a == userID || b == userID), nil
	}
	first, err := s.Storage.FirstMessageInConversation(ctx, conversationID)
	if err == nil {
		return first.SenderID == userID || first.RecipientID == userID, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}
