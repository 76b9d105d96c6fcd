package api

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wakala/divrecon/internal/logging"
)

// NewLimiter allows perSecond requests with a burst of the same size.
func NewLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Second/time.Duration(perSecond)), perSecond)
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log := logging.Component("api")
				log.Warn().Str("method", r.Method).Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).Msg("Rate limit exceeded")
				writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
