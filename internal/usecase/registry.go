package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/repository"
)

// ConversationStore is the persistence the registry depends on
type ConversationStore interface {
	GetUsers(ctx context.Context, ids []string) ([]*domain.User, error)
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	FindDirectConversation(ctx context.Context, pairKey string) (*domain.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// ConversationRegistry owns conversation lifecycle and membership checks
type ConversationRegistry struct {
	store    ConversationStore
	inflight singleflight.Group
}

type directResult struct {
	conv    *domain.Conversation
	created bool
	owner   string // call that ran the lookup
}

// NewConversationRegistry creates a new ConversationRegistry
func NewConversationRegistry(store ConversationStore) *ConversationRegistry {
	return &ConversationRegistry{store: store}
}

// Create resolves a create_conversation request. The requester is always a member.
// For direct requests it returns the existing conversation with created=false when one exists.
func (r *ConversationRegistry) Create(ctx context.Context, requesterID string, participantIDs []string, isGroup bool, groupName *string) (*domain.Conversation, bool, error) {
	members := lo.Uniq(append(lo.Compact(participantIDs), requesterID))

	if !isGroup {
		if len(members) != 2 {
			return nil, false, fmt.Errorf("%w: a direct conversation needs exactly one other participant", domain.ErrBadRequest)
		}
		other := members[0]
		if other == requesterID {
			other = members[1]
		}
		return r.FindOrCreateDirect(ctx, requesterID, other)
	}

	conv, err := r.CreateGroup(ctx, members, requesterID, groupName)
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// FindOrCreateDirect returns the unique direct conversation between two users, creating it if absent.
// Concurrent calls for the same pair share one lookup; the pair_key unique index covers other processes.
// Only the call that inserted the conversation reports created.
func (r *ConversationRegistry) FindOrCreateDirect(ctx context.Context, requesterID, otherID string) (*domain.Conversation, bool, error) {
	if requesterID == otherID {
		return nil, false, fmt.Errorf("%w: cannot start a conversation with yourself", domain.ErrBadRequest)
	}
	if err := r.requireUsers(ctx, []string{requesterID, otherID}); err != nil {
		return nil, false, err
	}

	key := domain.PairKey(requesterID, otherID)
	call := domain.NewID()
	v, err, _ := r.inflight.Do(key, func() (any, error) {
		existing, err := r.store.FindDirectConversation(ctx, key)
		if err == nil {
			return directResult{conv: existing}, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		conv := domain.NewDirectConversation(requesterID, otherID)
		if err := r.store.CreateConversation(ctx, conv); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				return nil, err
			}
			existing, err := r.store.FindDirectConversation(ctx, key)
			if err != nil {
				return nil, err
			}
			return directResult{conv: existing}, nil
		}

		stored, err := r.store.GetConversation(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		return directResult{conv: stored, created: true, owner: call}, nil
	})
	if err != nil {
		return nil, false, storeError("find or create direct conversation", err)
	}

	res := v.(directResult)
	return res.conv, res.created && res.owner == call, nil
}

// CreateGroup creates a new group conversation. Groups are never deduplicated.
func (r *ConversationRegistry) CreateGroup(ctx context.Context, participantIDs []string, creatorID string, name *string) (*domain.Conversation, error) {
	members := lo.Uniq(append(lo.Compact(participantIDs), creatorID))
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: a group needs at least one other participant", domain.ErrBadRequest)
	}
	if err := r.requireUsers(ctx, members); err != nil {
		return nil, err
	}

	conv := domain.NewGroupConversation(members, creatorID, name)
	if err := r.store.CreateConversation(ctx, conv); err != nil {
		return nil, storeError("create group", err)
	}

	stored, err := r.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return nil, storeError("load group", err)
	}
	return stored, nil
}

// IsMember reports whether userID belongs to the conversation.
// Unknown conversations have no members.
func (r *ConversationRegistry) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	ok, err := r.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, storeError("check membership", err)
	}
	return ok, nil
}

// Authorize returns nil if userID is a member, ErrNotFound for unknown
// conversations and ErrUnauthorized otherwise
func (r *ConversationRegistry) Authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := r.IsMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := r.Get(ctx, conversationID); err != nil {
		return err
	}
	return fmt.Errorf("%w: not a participant of this conversation", domain.ErrUnauthorized)
}

// Get returns a populated conversation
func (r *ConversationRegistry) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := r.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeError("get conversation", err)
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first
func (r *ConversationRegistry) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	convs, err := r.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, storeError("list conversations", err)
	}
	return convs, nil
}

func (r *ConversationRegistry) requireUsers(ctx context.Context, ids []string) error {
	users, err := r.store.GetUsers(ctx, ids)
	if err != nil {
		return storeError("load participants", err)
	}
	if len(users) == len(ids) {
		return nil
	}
	known := lo.SliceToMap(users, func(u *domain.User) (string, struct{}) { return u.ID, struct{}{} })
	missing := lo.Filter(ids, func(id string, _ int) bool {
		_, ok := known[id]
		return !ok
	})
	return fmt.Errorf("%w: unknown participants %v", domain.ErrNotFound, missing)
}

// storeError maps repository errors onto the domain error classes
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrBadRequest):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrStoreFailure, op, err)
	}
}
