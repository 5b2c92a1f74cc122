// Package app wires the daihard backend together and runs it in the
// configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/config"
	"github.com/burnable-tech/DAIHard/internal/query"
	"github.com/burnable-tech/DAIHard/internal/service"
)

// App owns the configuration, the logger and the cleanup funcs registered
// while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// core is what every mode runs: the aggregator loop and the listing service
// reading from it.
type core struct {
	runner  *aggregator.Runner
	listing *service.ListingService
}

func (a *App) buildCore(deps *Dependencies) core {
	openMode := a.cfg.Listing.ParsedOpenMode()
	agg, initial := aggregator.New(aggregator.Config{Factory: a.cfg.Chain.Factory()}, a.logger)
	runner := aggregator.NewRunner(agg, initial, deps.Reader, a.cfg.Listing.RefreshInterval.Duration, a.logger)
	listing := service.NewListingService(runner, query.New(openMode, a.logger), a.cfg.Listing.UserAddress(), a.logger)
	return core{runner: runner, listing: listing}
}

// Run wires dependencies, starts the selected mode and blocks until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("component", "app"),
		slog.String("mode", a.cfg.Mode),
		slog.String("open_mode", a.cfg.Listing.OpenMode),
		slog.String("factory", a.cfg.Chain.FactoryAddress),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	c := a.buildCore(deps)
	switch strings.ToLower(a.cfg.Mode) {
	case "serve":
		return a.ServeMode(ctx, deps, c)
	case "watch":
		return a.WatchMode(ctx, deps, c)
	case "full":
		return a.FullMode(ctx, deps, c)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close runs the cleanup funcs in reverse order. Later calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application", slog.String("component", "app"))
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
