package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := Open(Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)

	store := NewGormStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUser(t *testing.T, store *GormStore, name string) *domain.User {
	t.Helper()
	u, err := store.UpsertUser(context.Background(), domain.NewUser("ext_"+name, name, name+"@example.com", ""))
	require.NoError(t, err)
	return u
}

func TestGormStore_UpsertUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("should create on first contact", func(t *testing.T) {
		req := require.New(t)
		u, err := store.UpsertUser(ctx, &domain.User{ExternalID: "sub-1", Username: "alice"})
		req.NoError(err)
		req.NotEmpty(u.ID)
		req.Equal("alice", u.Username)
	})

	t.Run("should refresh profile on later contact and keep the id", func(t *testing.T) {
		req := require.New(t)
		first, err := store.UpsertUser(ctx, &domain.User{ExternalID: "sub-2", Username: "bob"})
		req.NoError(err)

		second, err := store.UpsertUser(ctx, &domain.User{ExternalID: "sub-2", Username: "bobby", AvatarURL: "https://img/b.png"})
		req.NoError(err)
		req.Equal(first.ID, second.ID)
		req.Equal("bobby", second.Username)
		req.Equal("https://img/b.png", second.AvatarURL)
	})

	t.Run("should converge when racing on the same identity", func(t *testing.T) {
		req := require.New(t)
		var wg sync.WaitGroup
		ids := make([]string, 5)
		errs := make([]error, 5)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u, err := store.UpsertUser(ctx, &domain.User{ExternalID: "sub-race", Username: "racer"})
				errs[i] = err
				if err == nil {
					ids[i] = u.ID
				}
			}(i)
		}
		wg.Wait()
		for i := range ids {
			req.NoError(errs[i])
			req.Equal(ids[0], ids[i])
		}
	})
}

func TestGormStore_UserQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req := require.New(t)

	alice := seedUser(t, store, "alice")
	seedUser(t, store, "bob")
	seedUser(t, store, "al_ice")

	others, err := store.ListUsersExcept(ctx, alice.ID)
	req.NoError(err)
	req.Len(others, 2)

	found, err := store.SearchUsers(ctx, alice.ID, "AL", 20)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal("al_ice", found[0].Username)

	// Underscore is matched literally rather than as a wildcard
	found, err = store.SearchUsers(ctx, "", "l_i", 20)
	req.NoError(err)
	req.Len(found, 1)

	_, err = store.GetUser(ctx, "missing")
	req.ErrorIs(err, ErrNotFound)

	at := time.Now().UTC()
	req.NoError(store.SetPresence(ctx, alice.ID, true, at))
	got, err := store.GetUser(ctx, alice.ID)
	req.NoError(err)
	req.True(got.IsOnline)
	req.NotNil(got.LastSeen)

	req.ErrorIs(store.SetPresence(ctx, "missing", false, at), ErrNotFound)
}

func TestGormStore_Conversations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	carol := seedUser(t, store, "carol")

	t.Run("should reject a second direct conversation for the same pair", func(t *testing.T) {
		req := require.New(t)
		req.NoError(store.CreateConversation(ctx, domain.NewDirectConversation(alice.ID, bob.ID)))

		err := store.CreateConversation(ctx, domain.NewDirectConversation(bob.ID, alice.ID))
		req.ErrorIs(err, ErrDuplicate)

		conv, err := store.FindDirectConversation(ctx, domain.PairKey(bob.ID, alice.ID))
		req.NoError(err)
		req.Equal([]string{alice.ID, bob.ID}, conv.ParticipantIDs)
		req.Len(conv.Participants, 2)
		req.Nil(conv.GroupName)
	})

	t.Run("should allow many groups over the same members", func(t *testing.T) {
		req := require.New(t)
		name := "trio"
		req.NoError(store.CreateConversation(ctx, domain.NewGroupConversation([]string{alice.ID, bob.ID, carol.ID}, alice.ID, &name)))
		req.NoError(store.CreateConversation(ctx, domain.NewGroupConversation([]string{alice.ID, bob.ID, carol.ID}, alice.ID, nil)))

		convs, err := store.ListConversationsForUser(ctx, carol.ID)
		req.NoError(err)
		req.Len(convs, 2)
		for _, c := range convs {
			req.True(c.IsGroup)
			req.Len(c.ParticipantIDs, 3)
		}
	})

	t.Run("should report membership", func(t *testing.T) {
		req := require.New(t)
		conv, err := store.FindDirectConversation(ctx, domain.PairKey(alice.ID, bob.ID))
		req.NoError(err)

		ok, err := store.IsParticipant(ctx, conv.ID, alice.ID)
		req.NoError(err)
		req.True(ok)

		ok, err = store.IsParticipant(ctx, conv.ID, carol.ID)
		req.NoError(err)
		req.False(ok)
	})

	t.Run("should not find unknown conversations", func(t *testing.T) {
		_, err := store.GetConversation(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGormStore_Messages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req := require.New(t)

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	conv := domain.NewDirectConversation(alice.ID, bob.ID)
	req.NoError(store.CreateConversation(ctx, conv))

	base := time.Now().UTC()
	var sent []*domain.Message
	for i := 0; i < 60; i++ {
		msg := domain.NewMessage(conv.ID, alice.ID, "hello", domain.MessageTypeText)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		req.NoError(store.CreateMessage(ctx, msg))
		req.NotNil(msg.Sender)
		req.Equal("alice", msg.Sender.Username)
		sent = append(sent, msg)
	}

	recent, err := store.ListMessages(ctx, conv.ID, nil, 50)
	req.NoError(err)
	req.Len(recent, 50)
	req.Equal(sent[10].ID, recent[0].ID)
	req.Equal(sent[59].ID, recent[49].ID)

	before := sent[10].CreatedAt
	older, err := store.ListMessages(ctx, conv.ID, &before, 50)
	req.NoError(err)
	req.Len(older, 10)
	req.Equal(sent[0].ID, older[0].ID)

	stored, err := store.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.NotNil(stored.LastMessage)
	req.Equal(sent[59].ID, stored.LastMessage.ID)

	orphan := domain.NewMessage("missing", alice.ID, "x", domain.MessageTypeText)
	req.ErrorIs(store.CreateMessage(ctx, orphan), ErrNotFound)
}

func TestGormStore_MarkRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req := require.New(t)

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	carol := seedUser(t, store, "carol")
	conv := domain.NewDirectConversation(alice.ID, bob.ID)
	other := domain.NewDirectConversation(alice.ID, carol.ID)
	req.NoError(store.CreateConversation(ctx, conv))
	req.NoError(store.CreateConversation(ctx, other))

	m1 := domain.NewMessage(conv.ID, alice.ID, "one", domain.MessageTypeText)
	m2 := domain.NewMessage(conv.ID, alice.ID, "two", domain.MessageTypeText)
	foreign := domain.NewMessage(other.ID, alice.ID, "elsewhere", domain.MessageTypeText)
	for _, m := range []*domain.Message{m1, m2, foreign} {
		req.NoError(store.CreateMessage(ctx, m))
	}

	marked, err := store.MarkRead(ctx, conv.ID, bob.ID, []string{m1.ID, m2.ID, foreign.ID}, time.Now())
	req.NoError(err)
	req.Equal([]string{m1.ID, m2.ID}, marked)

	// Repeating the call changes nothing
	marked, err = store.MarkRead(ctx, conv.ID, bob.ID, []string{m1.ID, m2.ID}, time.Now())
	req.NoError(err)
	req.Empty(marked)

	msgs, err := store.ListMessages(ctx, conv.ID, nil, 50)
	req.NoError(err)
	for _, m := range msgs {
		req.Len(m.ReadBy, 1)
		req.Equal(bob.ID, m.ReadBy[0].UserID)
	}

	otherMsgs, err := store.ListMessages(ctx, other.ID, nil, 50)
	req.NoError(err)
	req.Len(otherMsgs, 1)
	req.Empty(otherMsgs[0].ReadBy)
}
