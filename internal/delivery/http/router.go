package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmuslimabdulj/goat-messenger/internal/middleware"
)

// RouterConfig holds the cross-cutting pieces wrapped around the handlers
type RouterConfig struct {
	Authenticator middleware.Authenticator
	APILimiter    *middleware.IPRateLimiter
	WSLimiter     *middleware.IPRateLimiter
}

// NewRouter wires every route of the service
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger, middleware.SecurityHeaders)

	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	r.Handle("/ws", middleware.RateLimitMiddleware(cfg.WSLimiter)(http.HandlerFunc(h.HandleWebSocket))).
		Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(
		middleware.RateLimitMiddleware(cfg.APILimiter),
		middleware.NoStore,
		middleware.RequireAuth(cfg.Authenticator),
	)
	api.HandleFunc("/me", h.HandleMe).Methods(http.MethodGet)
	api.HandleFunc("/users", h.HandleUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/search", h.HandleSearchUsers).Methods(http.MethodGet)
	api.HandleFunc("/conversations", h.HandleConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/messages", h.HandleMessages).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}
