package middleware

import (
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/application/ports"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
	"github.com/mrsidrdx/context-graph-ai/pkg/common"
	"github.com/mrsidrdx/context-graph-ai/pkg/observability"
)

// RateLimit admits at most the limiter's quota per user. It must run after
// Authenticate. When the limiter itself fails the request is let through.
func RateLimit(limiter ports.RateLimiter, window time.Duration, metrics *observability.Collector, logger *zap.Logger) func(next http.Handler) http.Handler {
	resetIn := int(math.Ceil(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.GetUserFromContext(r.Context())
			if err != nil {
				common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			allowed, err := limiter.Allow(r.Context(), user.UserID)
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request",
					zap.String("userId", user.UserID),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RecordRateLimited()
				common.RespondRateLimited(w, resetIn)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
