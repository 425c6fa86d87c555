package middleware

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"imageConverter/api/dto"
)

// RateLimit rejects requests beyond the limiter's budget with 429. The budget
// is shared by every caller.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(dto.ErrorResponse{
					Error:   "Too many requests",
					TraceID: GetTraceID(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
