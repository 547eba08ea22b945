package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler serves the health-check endpoint, reporting the status of
// each backing store it was given.
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps a component name to
// its connectivity probe; nil entries are skipped.
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthCheck responds with the overall status and per-component detail.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	components := make(map[string]string, len(h.checks))

	for name, p := range h.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			components[name] = "down"
			overall = "degraded"
			status = http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status":     overall,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
