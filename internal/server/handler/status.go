package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
)

// ProgressSource reports aggregation progress.
type ProgressSource interface {
	Progress(ctx context.Context) (aggregator.Progress, error)
}

// StatusHandler serves the backend status for the dashboard.
type StatusHandler struct {
	Mode      string
	OpenMode  string
	Factory   string
	StartedAt time.Time
	progress  ProgressSource
	logger    *slog.Logger
}

func NewStatusHandler(mode, openMode, factory string, progress ProgressSource, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		Mode:      mode,
		OpenMode:  openMode,
		Factory:   factory,
		StartedAt: time.Now().UTC(),
		progress:  progress,
		logger:    logHandler(logger, "status"),
	}
}

// GetStatus responds with the run mode, listing configuration and loading
// progress.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.progress.Progress(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: progress failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "aggregator unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"open_mode":      h.OpenMode,
		"factory":        h.Factory,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
		"progress":       progress,
	})
}
