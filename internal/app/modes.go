package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/burnable-tech/DAIHard/internal/console"
	"github.com/burnable-tech/DAIHard/internal/domain"
	"github.com/burnable-tech/DAIHard/internal/server"
	"github.com/burnable-tech/DAIHard/internal/server/handler"
	"github.com/burnable-tech/DAIHard/internal/server/ws"
	"github.com/burnable-tech/DAIHard/internal/service"
)

const shutdownTimeout = 5 * time.Second

// ServeMode runs the aggregator behind the HTTP/WebSocket API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies, c core) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, c)
	g.Go(func() error { return c.runner.Run(ctx) })
	return g.Wait()
}

// WatchMode prints the listing to the terminal; no server is started.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies, c core) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	c.runner.AddListener(console.New(os.Stdout, c.listing, a.cfg.Listing.ConsoleRows, a.logger))
	a.addOptionalListeners(ctx, deps, c)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.runner.Run(ctx) })
	return g.Wait()
}

// FullMode is serve mode plus every configured archive, export and alert
// listener.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, c core) error {
	a.logger.InfoContext(ctx, "starting full mode")

	a.addOptionalListeners(ctx, deps, c)

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, c)
	}
	g.Go(func() error { return c.runner.Run(ctx) })
	return g.Wait()
}

// addOptionalListeners attaches the recorder, exporter and alerts when their
// backends are configured.
func (a *App) addOptionalListeners(ctx context.Context, deps *Dependencies, c core) {
	var attached []string
	if deps.TradeStore != nil {
		c.runner.AddListener(service.NewRecorder(deps.TradeStore, a.logger))
		attached = append(attached, "recorder")
	}
	if deps.BlobWriter != nil {
		c.runner.AddListener(service.NewExporter(deps.BlobWriter, a.cfg.S3.Prefix, a.cfg.S3.ExportInterval.Duration, a.logger))
		attached = append(attached, "exporter")
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		c.runner.AddListener(service.NewAlerts(c.listing, deps.Notifier, a.logger))
		attached = append(attached, "alerts")
	}
	a.logger.InfoContext(ctx, "snapshot listeners attached", slog.Any("listeners", attached))
}

// startHTTPServer registers the hub, the publisher feeding it and the API
// server on g. Must be called before the runner starts.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c core) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Channels:  []string{service.ChannelListing, service.ChannelProgress},
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error { return hub.Run(ctx) })

	// With Redis the publisher goes through the bus so every API process sees
	// it; otherwise it feeds the local hub directly.
	var pub domain.Publisher = hub
	if deps.SignalBus != nil {
		pub = deps.SignalBus
	}
	c.runner.AddListener(service.NewPublisher(c.listing, pub, a.logger))

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, a.cfg.Listing.OpenMode, a.cfg.Chain.FactoryAddress, c.listing, a.logger),
		Listing: handler.NewListingHandler(c.listing, a.logger),
		Search:  handler.NewSearchHandler(c.listing, a.logger),
	}
	if deps.TradeStore != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.TradeStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RequestsPerSec: a.cfg.Server.RequestsPerSec,
		Burst:          a.cfg.Server.Burst,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
