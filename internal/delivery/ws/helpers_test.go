package ws

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mmuslimabdulj/goat-messenger/internal/auth"
	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/repository"
	"github.com/mmuslimabdulj/goat-messenger/internal/usecase"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// newMockClient creates a client without an actual websocket connection suitable for testing
func newMockClient(hub *Hub, userID string) *Client {
	session := &Session{
		ConnID:      domain.NewID(),
		UserID:      userID,
		Username:    "user-" + userID,
		ConnectedAt: time.Now(),
	}
	settings := DefaultSettings()
	settings.EventRate = 0
	return NewClient(hub, nil, session, settings)
}

// drain returns every frame currently queued for the client
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return frames
			}
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func framesOfType(frames []frame, eventType string) []frame {
	var out []frame
	for _, f := range frames {
		if f.Type == eventType {
			out = append(out, f)
		}
	}
	return out
}

type harness struct {
	hub      *Hub
	store    *repository.GormStore
	registry *usecase.ConversationRegistry
	presence *usecase.PresenceTracker
	broker   *Broker
	manager  *Manager
}

func newHarness(t *testing.T, resolver auth.Resolver) *harness {
	t.Helper()
	db, err := repository.Open(repository.Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "ws.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	store := repository.NewGormStore(db)
	t.Cleanup(func() { _ = store.Close() })

	hub := NewHub()
	registry := usecase.NewConversationRegistry(store)
	presence := usecase.NewPresenceTracker(store, hub)
	broker := NewBroker(hub, registry, store, domain.HistoryLimit)

	settings := DefaultSettings()
	settings.EventRate = 0
	manager := NewManager(hub, resolver, store, presence, registry, broker, ManagerConfig{
		AuthTimeout:      time.Second,
		OperationTimeout: 5 * time.Second,
		Client:           settings,
	})

	return &harness{hub: hub, store: store, registry: registry, presence: presence, broker: broker, manager: manager}
}

func (h *harness) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := h.store.UpsertUser(context.Background(), domain.NewUser("ext_"+name, name, "", ""))
	require.NoError(t, err)
	return u
}

// connect attaches a transport-less client for u and discards the connect frames
func (h *harness) connect(t *testing.T, u *domain.User) *Client {
	t.Helper()
	session := &Session{ConnID: domain.NewID(), UserID: u.ID, Username: u.Username, ConnectedAt: time.Now()}
	c := h.manager.Attach(context.Background(), session, nil)
	return c
}

func (h *harness) direct(t *testing.T, a, b *domain.User) *domain.Conversation {
	t.Helper()
	conv, _, err := h.registry.FindOrCreateDirect(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return conv
}

func (h *harness) dispatch(t *testing.T, c *Client, eventType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	require.NoError(t, err)
	h.manager.Dispatch(c, raw)
}

func decodeMessage(t *testing.T, f frame) domain.Message {
	t.Helper()
	var m domain.Message
	require.NoError(t, json.Unmarshal(f.Payload, &m))
	return m
}
