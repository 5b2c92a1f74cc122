package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

// ExportDocument is the JSON body of one snapshot export.
type ExportDocument struct {
	TakenAt  time.Time            `json:"taken_at"`
	Progress aggregator.Progress  `json:"progress"`
	Trades   []domain.LoadedTrade `json:"trades"`
}

// Exporter writes every loaded trade to object storage at most once per
// interval.
type Exporter struct {
	blob     domain.BlobWriter
	prefix   string
	interval time.Duration
	last     time.Time
	logger   *slog.Logger
}

func NewExporter(blob domain.BlobWriter, prefix string, interval time.Duration, logger *slog.Logger) *Exporter {
	return &Exporter{
		blob:     blob,
		prefix:   strings.Trim(prefix, "/"),
		interval: interval,
		logger:   logger.With(slog.String("component", "exporter")),
	}
}

// ExportPath returns the object key for a snapshot taken at t.
func (e *Exporter) ExportPath(t time.Time) string {
	name := t.UTC().Format("2006/01/02/150405") + ".json"
	if e.prefix == "" {
		return name
	}
	return e.prefix + "/" + name
}

func (e *Exporter) OnSnapshot(ctx context.Context, snap aggregator.Snapshot) {
	if !e.last.IsZero() && snap.TakenAt.Sub(e.last) < e.interval {
		return
	}
	if err := e.Export(ctx, snap); err != nil {
		e.logger.Warn("export failed", slog.String("error", err.Error()))
		return
	}
	e.last = snap.TakenAt
}

// Export writes snap unconditionally.
func (e *Exporter) Export(ctx context.Context, snap aggregator.Snapshot) error {
	doc := ExportDocument{TakenAt: snap.TakenAt, Progress: snap.Progress, Trades: snap.Loaded()}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("service: marshal export: %w", err)
	}
	path := e.ExportPath(snap.TakenAt)
	if err := e.blob.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("service: put %s: %w", path, err)
	}
	e.logger.Info("snapshot exported", slog.String("path", path), slog.Int("trades", len(doc.Trades)))
	return nil
}
