// Package console prints the live listing as a table for the watch mode.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
	"github.com/burnable-tech/DAIHard/internal/service"
)

// Viewer renders a snapshot under the current search.
type Viewer interface {
	ViewOf(snap aggregator.Snapshot) service.ListingView
}

// Console is an aggregator.Listener that writes a table per snapshot,
// skipping snapshots that would print the same thing as the last one.
type Console struct {
	out     io.Writer
	viewer  Viewer
	maxRows int
	logger  *slog.Logger

	mu   sync.Mutex
	last string
}

// New creates a Console. maxRows <= 0 prints every row.
func New(out io.Writer, viewer Viewer, maxRows int, logger *slog.Logger) *Console {
	return &Console{
		out:     out,
		viewer:  viewer,
		maxRows: maxRows,
		logger:  logger.With(slog.String("component", "console")),
	}
}

func (c *Console) OnSnapshot(_ context.Context, snap aggregator.Snapshot) {
	view := c.viewer.ViewOf(snap)

	var buf bytes.Buffer
	c.render(&buf, view)
	text := buf.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.last {
		return
	}
	c.last = text
	if _, err := io.WriteString(c.out, text); err != nil {
		c.logger.Warn("console write failed", slog.String("error", err.Error()))
	}
}

func (c *Console) render(w io.Writer, view service.ListingView) {
	p := view.Progress
	if p.CountKnown {
		fmt.Fprintf(w, "\n[%s] loaded %d/%d trades, %d listed\n",
			view.TakenAt.Format("15:04:05"), p.Loaded, p.Total, len(view.Trades))
	} else {
		fmt.Fprintf(w, "\n[%s] waiting for trade count\n", view.TakenAt.Format("15:04:05"))
	}
	if len(view.Trades) == 0 {
		return
	}

	rows := view.Trades
	if c.maxRows > 0 && len(rows) > c.maxRows {
		rows = rows[:c.maxRows]
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "DAI", "Fiat", "Margin", "Payment", "Expires in", "Abort", "Release", "")
	for _, t := range rows {
		table.Append(
			fmt.Sprintf("%d", t.ID),
			t.Parameters.TradeAmount.StringFixed(2),
			fmt.Sprintf("%s %s", t.Parameters.FiatPrice.Amount.StringFixed(2), t.Parameters.FiatPrice.Currency),
			marginLabel(t.Derived.Margin),
			methodsLabel(t.PaymentMethods, 28),
			durationLabel(t.Derived.PhaseEndTime.Sub(view.TakenAt)),
			durationLabel(t.Parameters.AutoabortInterval),
			durationLabel(t.Parameters.AutoreleaseInterval),
			mineLabel(t.Mine),
		)
	}
	table.Render()

	if hidden := len(view.Trades) - len(rows); hidden > 0 {
		fmt.Fprintf(w, "  ... %d more\n", hidden)
	}
}

func marginLabel(m *decimal.Decimal) string {
	if m == nil {
		return "-"
	}
	return m.Shift(2).StringFixed(1) + "%"
}

// methodsLabel summarizes payment methods as their types, or the truncated
// raw text when it did not decode.
func methodsLabel(pm domain.PaymentMethods, width int) string {
	var label string
	if pm.Decoded() {
		kinds := make([]string, 0, len(pm.Methods))
		for _, m := range pm.Methods {
			kinds = append(kinds, string(m.Type))
		}
		label = strings.Join(kinds, ",")
	} else {
		label = strings.Join(strings.Fields(pm.Raw), " ")
	}
	if len(label) > width {
		label = label[:width-3] + "..."
	}
	return label
}

func durationLabel(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	mins := (d - hours*time.Hour) / time.Minute
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%02dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%02dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

func mineLabel(mine bool) string {
	if mine {
		return "*"
	}
	return ""
}

var _ aggregator.Listener = (*Console)(nil)
