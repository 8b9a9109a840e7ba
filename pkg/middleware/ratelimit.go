package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SubmitLimiter throttles run submissions with a single token bucket shared by
// all clients.
type SubmitLimiter struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSubmitLimiter creates a limiter refilling perSecond tokens up to burst.
// A non-positive perSecond disables throttling.
func NewSubmitLimiter(perSecond float64, burst int, logger *zap.Logger) *SubmitLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &SubmitLimiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("submit-limiter"),
	}
}

// Wrap rejects the request with 429 when no token is available.
func (l *SubmitLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			l.logger.Info("Rejected submission over rate limit",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": "too many run submissions, retry later",
			}); err != nil {
				l.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		next(w, r)
	}
}
