package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	pkgredis "github.com/agriconnect/agriconnect-backend/pkg/redis"
)

// SubjectFunc picks the rate limit bucket for a request. An empty subject
// skips the limit.
type SubjectFunc func(*http.Request) string

// RateLimit rejects requests past limit per subject inside window with 429
// and a Retry-After header. A nil limiter or a redis failure lets the request
// through.
func RateLimit(limiter pkgredis.RateLimiter, scope string, limit int64, window time.Duration, subject SubjectFunc, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := subject(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			decision, err := limiter.Allow(r.Context(), scope, key, limit, window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{"scope": scope, "error": err.Error()}), "rate limit check failed")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				retry := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts").
					WithDetails(map[string]any{"retry_after_seconds": retry}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PerRouteParam buckets by the authenticated user and a chi URL param, so
// one driver hammering one order does not lock out anyone else.
func PerRouteParam(param string) SubjectFunc {
	return func(r *http.Request) string {
		userID := UserIDFromContext(r.Context())
		value := chi.URLParam(r, param)
		if userID == "" || value == "" {
			return ""
		}
		return value + ":" + userID
	}
}
