package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SetRateLimit bounds how many evaluations per second the handler accepts
// across all clients. A non-positive limit removes the bound.
func (h *Handler) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		h.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// rateLimited answers 429 when the evaluation budget is spent. Evaluations
// walk every day of every relationship, so only those routes are limited.
func (h *Handler) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			zap.L().Warn("evaluation rate limited",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many evaluations", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
