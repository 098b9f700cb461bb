package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mmuslimabdulj/goat-messenger/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
	"github.com/mmuslimabdulj/goat-messenger/internal/middleware"
)

// Connector admits websocket connections
type Connector interface {
	Connect(ctx context.Context, credential string) (*ws.Session, error)
	Attach(ctx context.Context, session *ws.Session, conn *websocket.Conn) *ws.Client
	Dispatch(c *ws.Client, raw []byte)
	Disconnect(c *ws.Client)
}

// UserReader serves the user directory views
type UserReader interface {
	ListUsersExcept(ctx context.Context, excludeID string) ([]*domain.User, error)
	SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]*domain.User, error)
}

// ConversationReader serves conversation views for members
type ConversationReader interface {
	Authorize(ctx context.Context, conversationID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
}

// MessageReader pages through conversation history
type MessageReader interface {
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*domain.Message, error)
}

// HubStats exposes live connection counts
type HubStats interface {
	ClientCount() int
	ChannelCount() int
}

// PresenceStats exposes the number of online users
type PresenceStats interface {
	OnlineCount() int
}

// Options configures the handler
type Options struct {
	AllowedOrigins []string
	HistoryLimit   int
	ReadBuffer     int
	WriteBuffer    int

	// Optional sources for the health report
	Hub      HubStats
	Presence PresenceStats
}

type Handler struct {
	connector     Connector
	users         UserReader
	conversations ConversationReader
	messages      MessageReader
	upgrader      websocket.Upgrader
	historyLimit  int
	hubStats      HubStats
	presenceStats PresenceStats
	started       time.Time
}

func NewHandler(connector Connector, users UserReader, conversations ConversationReader, messages MessageReader, opts Options) *Handler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = domain.HistoryLimit
	}
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = 1024
	}
	if opts.WriteBuffer <= 0 {
		opts.WriteBuffer = 1024
	}
	origins := opts.AllowedOrigins
	return &Handler{
		connector:     connector,
		users:         users,
		conversations: conversations,
		messages:      messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBuffer,
			WriteBufferSize: opts.WriteBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return isOriginAllowed(origins, r.Header.Get("Origin"))
			},
		},
		historyLimit:  opts.HistoryLimit,
		hubStats:      opts.Hub,
		presenceStats: opts.Presence,
		started:       time.Now(),
	}
}

// isOriginAllowed checks if the origin is in the allowed list
func isOriginAllowed(allowed []string, origin string) bool {
	// Empty origin is allowed (non-browser clients)
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(origin, a) {
			return true
		}
	}
	return false
}

// HandleWebSocket authenticates the credential and upgrades to a websocket.
// Rejected credentials never reach the upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}

	session, err := h.connector.Connect(r.Context(), credential)
	if err != nil {
		l := logger.Ctx(r.Context())
		if errors.Is(err, domain.ErrAuth) {
			l.Debug().Err(err).Msg("websocket authentication rejected")
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		l.Error().Err(err).Msg("websocket admission failed")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		return
	}

	client := h.connector.Attach(context.WithoutCancel(r.Context()), session, conn)

	go client.WritePump()
	go client.ReadPump(h.connector.Dispatch, h.connector.Disconnect)
}

// HandleMe returns the authenticated user
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUsers lists every user except the caller
func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	users, err := h.users.ListUsersExcept(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleSearchUsers matches q against usernames and emails
func (h *Handler) HandleSearchUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter 'q'")
		return
	}

	users, err := h.users.SearchUsers(r.Context(), user.ID, query, domain.MaxSearchResults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleConversations lists the caller's conversations, most recent activity first
func (h *Handler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	convs, err := h.conversations.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// HandleMessages returns one page of history, oldest first.
// The page ends just before the optional RFC3339 'before' cursor.
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	conversationID := mux.Vars(r)["id"]

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'before' timestamp")
			return
		}
		before = &t
	}

	limit := h.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid 'limit'")
			return
		}
		limit = min(n, domain.MaxPageSize)
	}

	if err := h.conversations.Authorize(r.Context(), conversationID, user.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	msgs, err := h.messages.ListMessages(r.Context(), conversationID, before, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleHealth reports liveness along with connection and presence counts
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.hubStats != nil {
		body["connections"] = h.hubStats.ClientCount()
		body["channels"] = h.hubStats.ChannelCount()
	}
	if h.presenceStats != nil {
		body["onlineUsers"] = h.presenceStats.OnlineCount()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	l := logger.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Msg("request failed")
	} else {
		l.Debug().Err(err).Msg("request rejected")
	}
	writeError(w, status, domain.ErrorMessage(err))
}

func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case domain.CodeAuthFailed:
		return http.StatusUnauthorized
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeBadRequest:
		return http.StatusBadRequest
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
