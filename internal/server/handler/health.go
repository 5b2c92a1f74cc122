package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const checkTimeout = 2 * time.Second

// CheckFunc probes one backend. A nil error means reachable.
type CheckFunc func(ctx context.Context) error

// HealthHandler reports liveness plus the reachability of each optional
// backend (redis, postgres, s3) that was wired at startup.
type HealthHandler struct {
	checks map[string]CheckFunc
	logger *slog.Logger
}

func NewHealthHandler(checks map[string]CheckFunc, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logHandler(logger, "health")}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Backends  map[string]string `json:"backends,omitempty"`
}

// HealthCheck answers 200 when every backend responds, 503 otherwise.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Backends = make(map[string]string, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			h.logger.Warn("backend unhealthy", slog.String("backend", name), slog.String("error", err.Error()))
			resp.Backends[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Backends[name] = "ok"
	}
	writeJSON(w, status, resp)
}
