package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

type userIDKey struct{}

// userMiddleware reads the caller's user ID from header. A missing header means an
// anonymous request.
func userMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := types.UserID(strings.TrimSpace(r.Header.Get(header)))

			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			if !userID.IsAnonymous() {
				ctx = logging.With(ctx, logging.From(ctx).With("user_id", userID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFrom(ctx context.Context) types.UserID {
	userID, _ := ctx.Value(userIDKey{}).(types.UserID)
	return userID
}

func bodyLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
