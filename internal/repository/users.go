package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

// UpsertUser creates or refreshes the user identified by ExternalID
func (s *GormStore) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "external_id = ?", user.ExternalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.createUser(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if user.Username != "" && user.Username != model.Username {
		updates["username"] = user.Username
	}
	if user.Email != "" && user.Email != model.Email {
		updates["email"] = user.Email
	}
	if user.AvatarURL != "" && user.AvatarURL != model.AvatarURL {
		updates["avatar_url"] = user.AvatarURL
	}
	if len(updates) == 0 {
		return model.ToDomain(), nil
	}

	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", model.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetUser(ctx, model.ID)
}

func (s *GormStore) createUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	model := userToModel(user)
	if model.ID == "" {
		model.ID = domain.NewID()
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if !isDuplicate(err) {
			return nil, err
		}
		// Lost a first-contact race with another connection of the same identity
		var existing UserModel
		if err := s.db.WithContext(ctx).First(&existing, "external_id = ?", user.ExternalID).Error; err != nil {
			return nil, handleError(err)
		}
		return existing.ToDomain(), nil
	}
	return model.ToDomain(), nil
}

// GetUser retrieves a user by ID
func (s *GormStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, handleError(err)
	}
	return model.ToDomain(), nil
}

// GetUsers retrieves the users that exist among ids, in no particular order
func (s *GormStore) GetUsers(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return usersToDomain(models), nil
}

// ListUsersExcept lists every user but excludeID, ordered by username
func (s *GormStore) ListUsersExcept(ctx context.Context, excludeID string) ([]*domain.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Order("username ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return usersToDomain(models), nil
}

// SearchUsers matches query case-insensitively against username and email
func (s *GormStore) SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]*domain.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"

	var models []UserModel
	if err := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return usersToDomain(models), nil
}

// SetPresence persists the online flag and last-seen time of a user
func (s *GormStore) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_online": online,
			"last_seen": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) userMap(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	users := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for i := range models {
		users[models[i].ID] = models[i].ToDomain()
	}
	return users, nil
}

func usersToDomain(models []UserModel) []*domain.User {
	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = models[i].ToDomain()
	}
	return users
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
