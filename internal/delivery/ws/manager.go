package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-messenger/internal/auth"
	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

// UserStore syncs identity profiles into user records
type UserStore interface {
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)
}

// Presence records which connection represents a user
type Presence interface {
	SetOnline(ctx context.Context, userID, username, connID string) error
	SetOffline(ctx context.Context, userID, username, connID string) (bool, error)
}

// ConversationLister loads the conversation list sent on connect
type ConversationLister interface {
	ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
}

// ManagerConfig holds connection lifecycle settings
type ManagerConfig struct {
	AuthTimeout      time.Duration
	OperationTimeout time.Duration
	Client           Settings
}

// Manager owns the lifecycle of every connection: admission, event dispatch and teardown
type Manager struct {
	hub           *Hub
	resolver      auth.Resolver
	users         UserStore
	presence      Presence
	conversations ConversationLister
	broker        *Broker
	cfg           ManagerConfig
}

// NewManager creates a new Manager
func NewManager(hub *Hub, resolver auth.Resolver, users UserStore, presence Presence, conversations ConversationLister, broker *Broker, cfg ManagerConfig) *Manager {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = domain.AuthTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = domain.OperationTimeout
	}
	return &Manager{
		hub:           hub,
		resolver:      resolver,
		users:         users,
		presence:      presence,
		conversations: conversations,
		broker:        broker,
		cfg:           cfg,
	}
}

// Authenticate resolves a credential and syncs the matching user record.
// Credential problems wrap domain.ErrAuth.
func (m *Manager) Authenticate(ctx context.Context, credential string) (*domain.User, error) {
	credential = auth.BearerToken(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuth, auth.ErrMissingCredential)
	}

	identity, err := m.resolve(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}

	user, err := m.users.UpsertUser(ctx, domain.NewUser(identity.Subject, identity.DisplayName(), identity.Email, identity.AvatarURL))
	if err != nil {
		return nil, fmt.Errorf("%w: sync profile: %v", domain.ErrStoreFailure, err)
	}
	return user, nil
}

// resolve bounds identity resolution by AuthTimeout even if the resolver ignores ctx
func (m *Manager) resolve(ctx context.Context, credential string) (*auth.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.AuthTimeout)
	defer cancel()

	type result struct {
		identity *auth.Identity
		err      error
	}
	done := make(chan result, 1)
	go func() {
		identity, err := m.resolver.Resolve(ctx, credential)
		done <- result{identity, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("identity resolution: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.identity == nil || r.identity.Subject == "" {
			return nil, auth.ErrInvalidCredential
		}
		return r.identity, nil
	}
}

// Connect authenticates a credential and returns the session for a new connection.
// The caller must not attach a transport when it fails.
func (m *Manager) Connect(ctx context.Context, credential string) (*Session, error) {
	user, err := m.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	return &Session{
		ConnID:      domain.NewID(),
		UserID:      user.ID,
		Username:    user.Username,
		AvatarURL:   user.AvatarURL,
		ConnectedAt: time.Now().UTC(),
	}, nil
}

// Attach binds a session to its transport: it registers the client, subscribes the
// personal channel, marks the user online and sends the conversation list
func (m *Manager) Attach(ctx context.Context, session *Session, conn *websocket.Conn) *Client {
	c := NewClient(m.hub, conn, session, m.cfg.Client)
	log := clientLogger(c)

	m.hub.Register(c)
	m.hub.Join(c, domain.UserChannel(session.UserID))

	ctx, cancel := context.WithTimeout(ctx, m.cfg.OperationTimeout)
	defer cancel()

	if err := m.presence.SetOnline(ctx, session.UserID, session.Username, c.ID); err != nil {
		log.Warn().Err(err).Msg("failed to persist presence")
	}

	convs, err := m.conversations.ListForUser(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load conversations")
		convs = []*domain.Conversation{}
		m.hub.Send(c, domain.NewErrorEvent(err, ""))
	}
	m.hub.Send(c, domain.NewEvent(domain.EventConversationsList, convs))

	log.Info().Msg("client connected")
	return c
}

// Disconnect tears down a connection. Only the first call has an effect.
func (m *Manager) Disconnect(c *Client) {
	if !c.markClosed() {
		return
	}
	m.hub.Unregister(c)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.OperationTimeout)
	defer cancel()

	log := clientLogger(c)
	if _, err := m.presence.SetOffline(ctx, c.UserID(), c.Session.Username, c.ID); err != nil {
		log.Warn().Err(err).Msg("failed to persist presence")
	}
	log.Info().Msg("client disconnected")
}

// Dispatch parses one inbound frame and routes it to the broker.
// Failures are reported to the sender as error events.
func (m *Manager) Dispatch(c *Client, raw []byte) {
	select {
	case <-c.Done():
		return
	default:
	}

	if !c.Allow() {
		m.hub.Send(c, domain.NewErrorEvent(domain.ErrRateLimited, ""))
		return
	}

	event, err := domain.ParseInbound(raw)
	if err != nil {
		m.fail(c, "", err)
		return
	}

	log := clientLogger(c).With().Str(logger.FieldEvent, event.EventType()).Logger()
	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), log), m.cfg.OperationTimeout)
	defer cancel()

	if err := m.handle(ctx, c, event); err != nil {
		m.fail(c, event.EventType(), err)
	}
}

func (m *Manager) handle(ctx context.Context, c *Client, event domain.Inbound) error {
	switch e := event.(type) {
	case domain.JoinConversation:
		err := m.broker.Subscribe(ctx, c, e.ConversationID)
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNotFound) {
			// Failed joins are silent; the client simply receives nothing for the channel
			l := logger.Ctx(ctx)
			l.Debug().Err(err).Str(logger.FieldConversationID, e.ConversationID).Msg("join refused")
			return nil
		}
		return err

	case domain.LeaveConversation:
		m.broker.Unsubscribe(c, e.ConversationID)
		return nil

	case domain.SendMessage:
		msg, err := m.broker.Publish(ctx, c, e.ConversationID, e.Content, e.Type)
		if err != nil {
			return err
		}
		l := logger.Ctx(ctx)
		l.Debug().
			Str(logger.FieldConversationID, e.ConversationID).
			Str(logger.FieldMessageID, msg.ID).
			Msg("message published")
		return nil

	case domain.Typing:
		return m.broker.SetTyping(c, e.ConversationID, e.IsTyping)

	case domain.CreateConversation:
		_, err := m.broker.CreateConversationAndNotify(ctx, c, e.ParticipantIDs, e.IsGroup, e.GroupName)
		return err

	case domain.MarkAsRead:
		return m.broker.MarkRead(ctx, c, e.ConversationID, e.MessageIDs)

	case domain.Ping:
		m.hub.Send(c, domain.NewEvent(domain.EventPong, domain.PongPayload{Timestamp: time.Now().UTC()}))
		return nil

	default:
		return fmt.Errorf("%w: unsupported event %s", domain.ErrBadRequest, event.EventType())
	}
}

func (m *Manager) fail(c *Client, cause string, err error) {
	if errors.Is(err, ErrConnectionClosed) {
		return
	}

	log := clientLogger(c)
	var entry *zerolog.Event
	switch domain.ErrorCode(err) {
	case domain.CodeStoreFailure, domain.CodeInternalError:
		entry = log.Error()
	default:
		entry = log.Debug()
	}
	entry.Err(err).Str(logger.FieldEvent, cause).Msg("event failed")

	m.hub.Send(c, domain.NewErrorEvent(err, cause))
}

func clientLogger(c *Client) zerolog.Logger {
	return logger.L().With().
		Str(logger.FieldConnID, c.ID).
		Str(logger.FieldUserID, c.UserID()).
		Logger()
}
