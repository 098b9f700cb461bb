package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

// Authenticator turns a credential into a user record
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*domain.User, error)
}

type userKey struct{}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user set by RequireAuth
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey{}).(*domain.User)
	return user, ok && user != nil
}

// RequireAuth rejects requests without a valid bearer credential.
// The resolved user is available through UserFromContext.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				l := logger.Ctx(r.Context())
				if errors.Is(err, domain.ErrAuth) {
					l.Debug().Err(err).Msg("authentication rejected")
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				l.Error().Err(err).Msg("authentication failed")
				writeError(w, http.StatusServiceUnavailable, "authentication unavailable")
				return
			}

			ctx := WithUser(r.Context(), user)
			l := logger.Ctx(ctx).With().Str(logger.FieldUserID, user.ID).Logger()
			next.ServeHTTP(w, r.WithContext(logger.WithLogger(ctx, l)))
		})
	}
}
