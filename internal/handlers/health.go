package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports ok when db answers a ping within two seconds. A nil db
// only checks that the process serves requests.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeData(w, http.StatusOK, "ok", nil)
	}
}

// TooManyRequests is the rejection body of rate-limited core endpoints.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, "Too Many Attempts.")
}

// DropdownTooManyRequests is the rejection body of rate-limited dropdowns.
func DropdownTooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeDropdown(w, http.StatusTooManyRequests, msgPtr("Terlalu banyak permintaan"), []any{})
}
