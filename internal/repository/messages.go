package repository

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

// CreateMessage stores the message and makes it the conversation's last message
func (s *GormStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	var sender UserModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sender, "id = ?", msg.SenderID).Error; err != nil {
			return err
		}
		if err := tx.Create(messageToModel(msg)).Error; err != nil {
			return err
		}
		return s.touchConversation(tx, msg.ConversationID, msg.ID, msg.CreatedAt)
	})
	if err != nil {
		return handleError(err)
	}

	summary := sender.ToDomain().Summary()
	msg.Sender = &summary
	if msg.ReadBy == nil {
		msg.ReadBy = []domain.ReadReceipt{}
	}
	return nil
}

// ListMessages returns a page of history in chronological order
func (s *GormStore) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*domain.Message, error) {
	query := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if before != nil {
		query = query.Where("created_at < ?", before.UTC())
	}

	var models []MessageModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	slices.Reverse(models)

	return s.attachDetails(ctx, models)
}

// MarkRead inserts receipts for the ids that belong to the conversation.
// Receipts that already exist are left untouched.
func (s *GormStore) MarkRead(ctx context.Context, conversationID, userID string, messageIDs []string, at time.Time) ([]string, error) {
	messageIDs = lo.Uniq(messageIDs)
	var marked []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var valid []string
		if err := tx.Model(&MessageModel{}).
			Where("conversation_id = ? AND id IN ?", conversationID, messageIDs).
			Pluck("id", &valid).Error; err != nil {
			return err
		}
		if len(valid) == 0 {
			return nil
		}

		var already []string
		if err := tx.Model(&ReadReceiptModel{}).
			Where("user_id = ? AND message_id IN ?", userID, valid).
			Pluck("message_id", &already).Error; err != nil {
			return err
		}

		marked = lo.Filter(messageIDs, func(id string, _ int) bool {
			return lo.Contains(valid, id) && !lo.Contains(already, id)
		})
		if len(marked) == 0 {
			return nil
		}

		receipts := lo.Map(marked, func(id string, _ int) ReadReceiptModel {
			return ReadReceiptModel{MessageID: id, UserID: userID, ReadAt: at.UTC()}
		})
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts).Error
	})
	if err != nil {
		return nil, handleError(err)
	}
	if marked == nil {
		marked = []string{}
	}
	return marked, nil
}

// attachDetails converts models and fills sender summaries and read receipts
func (s *GormStore) attachDetails(ctx context.Context, models []MessageModel) ([]*domain.Message, error) {
	if len(models) == 0 {
		return []*domain.Message{}, nil
	}

	ids := lo.Map(models, func(m MessageModel, _ int) string { return m.ID })
	senderIDs := lo.Uniq(lo.Map(models, func(m MessageModel, _ int) string { return m.SenderID }))

	senders, err := s.userMap(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	var receipts []ReadReceiptModel
	if err := s.db.WithContext(ctx).
		Where("message_id IN ?", ids).
		Order("read_at ASC").
		Find(&receipts).Error; err != nil {
		return nil, err
	}
	byMessage := lo.GroupBy(receipts, func(r ReadReceiptModel) string { return r.MessageID })

	messages := make([]*domain.Message, len(models))
	for i := range models {
		msg := models[i].ToDomain()
		if u, ok := senders[msg.SenderID]; ok {
			summary := u.Summary()
			msg.Sender = &summary
		}
		for _, r := range byMessage[msg.ID] {
			msg.ReadBy = append(msg.ReadBy, domain.ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt})
		}
		messages[i] = msg
	}
	return messages, nil
}
