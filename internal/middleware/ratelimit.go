package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/pairing-server-go/internal/config"
	"github.com/openclaw/pairing-server-go/internal/service"
)

const userRateWindow = 60 * time.Second

// UserRateLimitMiddleware limits authenticated callers per user. It must run
// after AuthMiddleware; unauthenticated requests pass through untouched.
type UserRateLimitMiddleware struct {
	limiter *service.RateLimiter
}

func NewUserRateLimitMiddleware(limiter *service.RateLimiter) *UserRateLimitMiddleware {
	return &UserRateLimitMiddleware{limiter: limiter}
}

func (m *UserRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("user:%s", user.ID)
		allowed, resetAt := m.limiter.CheckLimit(r.Context(), key, config.DefaultRateLimitPerMin, userRateWindow)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.DefaultRateLimitPerMin))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			log.Warn().Str("userId", user.ID).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
