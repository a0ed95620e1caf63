package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a bare function to the pinger interface, for clients
// whose Ping does not return a plain error.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports service liveness plus dependency reachability.
type HealthHandler struct {
	db    pinger
	redis pinger
}

func NewHealthHandler(db, redis pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	if h.db != nil {
		checks["postgres"] = h.ping(ctx, h.db)
	}
	if h.redis != nil {
		checks["redis"] = h.ping(ctx, h.redis)
	}
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) ping(ctx context.Context, p pinger) string {
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
