package storage

import (
	"context"

	"shelterlink/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateMessage зберігає повідомлення в PostgreSQL. The conversation row is
// claimed with ON CONFLICT DO NOTHING and read back in the same transaction,
// so of two first sends from different pairs only one binds the id.
func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	pair := models.PairKey(msg.SenderID, msg.RecipientID)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := models.Conversation{ID: msg.ConversationID, PairKey: pair}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim).Error; err != nil {
			return err
		}
		var bound models.Conversation
		if err := tx.Where("id = ?", msg.ConversationID).First(&bound).Error; err != nil {
			return err
		}
		if bound.PairKey != pair {
			return ErrConversationTaken
		}
		return tx.Create(msg).Error
	})
}

func (s *Service) FirstMessageInConversation(ctx context.Context, conversationID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (s *Service) ListMessagesForUser(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at desc").
		Find(&msgs).Error
	return msgs, err
}

// ListConversationMessages returns the conversation history visible to
// userID, oldest first.
func (s *Service) ListConversationMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at asc").
		Order("id asc").
		Find(&msgs).Error
	return msgs, err
}

func (s *Service) MarkConversationRead(ctx context.Context, conversationID, recipientID string) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *Service) MarkMessageRead(ctx context.Context, messageID, recipientID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND recipient_id = ?", messageID, recipientID).First(&msg).Error; err != nil {
			return notFound(err)
		}
		if msg.IsRead {
			return nil
		}
		msg.IsRead = true
		return tx.Model(&msg).Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	return n, err
}
