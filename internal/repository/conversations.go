package repository

import (
	"context"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

// CreateConversation inserts the conversation and its participants atomically
func (s *GormStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	model := &ConversationModel{
		ID:            conv.ID,
		IsGroup:       conv.IsGroup,
		CreatedBy:     conv.CreatedBy,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
	if conv.IsGroup {
		model.GroupName = conv.GroupName
	} else if key := conv.PairKey(); key != "" {
		model.PairKey = &key
	}

	participants := make([]ParticipantModel, len(conv.ParticipantIDs))
	for i, userID := range conv.ParticipantIDs {
		participants[i] = ParticipantModel{
			ConversationID: conv.ID,
			UserID:         userID,
			Position:       i,
			JoinedAt:       conv.CreatedAt,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&participants).Error
	})
	return handleError(err)
}

// GetConversation retrieves a conversation with participants and last message populated
func (s *GormStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var model ConversationModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, handleError(err)
	}
	convs, err := s.hydrate(ctx, []ConversationModel{model})
	if err != nil {
		return nil, err
	}
	return convs[0], nil
}

// FindDirectConversation retrieves the direct conversation for a pair key
func (s *GormStore) FindDirectConversation(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	var model ConversationModel
	if err := s.db.WithContext(ctx).First(&model, "pair_key = ?", pairKey).Error; err != nil {
		return nil, handleError(err)
	}
	convs, err := s.hydrate(ctx, []ConversationModel{model})
	if err != nil {
		return nil, err
	}
	return convs[0], nil
}

// ListConversationsForUser lists the user's conversations, most recently active first
func (s *GormStore) ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	var models []ConversationModel
	if err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants ON conversation_participants.conversation_id = conversations.id").
		Where("conversation_participants.user_id = ?", userID).
		Order("conversations.last_message_at DESC, conversations.id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return s.hydrate(ctx, models)
}

// IsParticipant reports whether userID belongs to the conversation
func (s *GormStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// hydrate loads participants, their summaries and the last message for each model
func (s *GormStore) hydrate(ctx context.Context, models []ConversationModel) ([]*domain.Conversation, error) {
	if len(models) == 0 {
		return []*domain.Conversation{}, nil
	}

	ids := lo.Map(models, func(m ConversationModel, _ int) string { return m.ID })

	var participants []ParticipantModel
	if err := s.db.WithContext(ctx).
		Where("conversation_id IN ?", ids).
		Order("conversation_id, position").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	byConversation := lo.GroupBy(participants, func(p ParticipantModel) string { return p.ConversationID })

	userIDs := lo.Uniq(lo.Map(participants, func(p ParticipantModel, _ int) string { return p.UserID }))
	users, err := s.userMap(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	lastIDs := lo.FilterMap(models, func(m ConversationModel, _ int) (string, bool) {
		if m.LastMessageID == nil {
			return "", false
		}
		return *m.LastMessageID, true
	})
	var lastModels []MessageModel
	if len(lastIDs) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&lastModels).Error; err != nil {
			return nil, err
		}
	}
	lastMessages, err := s.attachDetails(ctx, lastModels)
	if err != nil {
		return nil, err
	}
	lastByID := lo.KeyBy(lastMessages, func(m *domain.Message) string { return m.ID })

	convs := make([]*domain.Conversation, len(models))
	for i, m := range models {
		conv := &domain.Conversation{
			ID:             m.ID,
			IsGroup:        m.IsGroup,
			GroupName:      m.GroupName,
			CreatedBy:      m.CreatedBy,
			LastMessageID:  m.LastMessageID,
			LastMessageAt:  m.LastMessageAt,
			CreatedAt:      m.CreatedAt,
			ParticipantIDs: []string{},
			Participants:   []domain.UserSummary{},
		}
		for _, p := range byConversation[m.ID] {
			conv.ParticipantIDs = append(conv.ParticipantIDs, p.UserID)
			if u, ok := users[p.UserID]; ok {
				conv.Participants = append(conv.Participants, u.Summary())
			}
		}
		if m.LastMessageID != nil {
			conv.LastMessage = lastByID[*m.LastMessageID]
		}
		convs[i] = conv
	}
	return convs, nil
}

func (s *GormStore) touchConversation(tx *gorm.DB, conversationID, messageID string, at time.Time) error {
	result := tx.Model(&ConversationModel{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message_id": messageID,
			"last_message_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
