package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ovenworks/pizzeria/internal/domain/auth"
)

// apiKeyHeader carries the raw admin API key.
const apiKeyHeader = "X-Api-Key"

// RequireAPIKey authenticates the request's API key and checks the given
// scope. Failures are uniform 401s regardless of cause.
func (h *Handler) RequireAPIKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := r.Header.Get(apiKeyHeader)
			if raw == "" {
				respondError(ctx, w, auth.ErrUnauthorized)
				return
			}

			key, err := h.auth.Authenticate(ctx, raw)
			if err != nil {
				respondError(ctx, w, auth.ErrUnauthorized)
				return
			}
			if !key.HasScope(scope) {
				zctx.From(ctx).Warn("api key missing scope",
					zap.String("key", key.Name), zap.String("scope", scope))
				respondError(ctx, w, auth.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
