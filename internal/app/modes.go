package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwhitfield/auctionhouse/internal/server"
	"github.com/mwhitfield/auctionhouse/internal/server/handler"
	"github.com/mwhitfield/auctionhouse/internal/server/ws"
	"github.com/mwhitfield/auctionhouse/internal/service"
)

// services bundles the domain services built on top of the wired dependencies.
type services struct {
	lifecycle     *service.LifecycleService
	auctions      *service.AuctionService
	bids          *service.BidService
	disputes      *service.DisputeService
	notifications *service.NotificationService
}

// buildServices constructs the service layer shared by all modes.
func (a *App) buildServices(deps *Dependencies) *services {
	lifecycleSvc := service.NewLifecycleService(
		deps.AuctionStore, deps.BidStore, deps.Emitter,
		deps.LockManager, deps.AuctionCache, deps.SignalBus,
		deps.AuditStore, deps.Collector, deps.Clock, a.logger,
	)

	bidSvc := service.NewBidService(
		deps.AuctionStore, deps.BidStore, deps.Emitter,
		deps.RateLimiter, lifecycleSvc, deps.AuctionCache,
		deps.SignalBus, deps.AuditStore, deps.Collector,
		deps.Clock, a.logger,
		a.cfg.Bids.RateLimit, a.cfg.Bids.RateWindow.Duration, a.cfg.Bids.MaxRetries,
	)

	disputeSvc := service.NewDisputeService(
		deps.AuctionStore, deps.BidStore, deps.Emitter,
		deps.AuctionCache, deps.SignalBus, deps.AuditStore,
		deps.Collector, deps.Notifier, deps.Clock, a.logger,
	)

	// Images is a typed nil when S3 is disabled; keep the interface nil so the
	// service can reject uploads cleanly.
	var images service.ImagePutter
	if deps.Images != nil {
		images = deps.Images
	}
	auctionSvc := service.NewAuctionService(
		deps.AuctionStore, deps.BidStore, deps.AuctionCache,
		lifecycleSvc, images, deps.Clock, a.logger,
	)

	notificationSvc := service.NewNotificationService(deps.NotificationStore, a.logger)

	return &services{
		lifecycle:     lifecycleSvc,
		auctions:      auctionSvc,
		bids:          bidSvc,
		disputes:      disputeSvc,
		notifications: notificationSvc,
	}
}

// ServeMode runs only the HTTP API and WebSocket hub. Lifecycle transitions
// still happen lazily on reads and writes, but no background sweeper runs.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// SweepMode runs only the background lifecycle sweeper. Useful for running a
// dedicated reconciler alongside a fleet of serve-mode instances.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	sweeper := service.NewSweeper(
		deps.AuctionStore, svcs.lifecycle, deps.Clock, a.logger,
		a.cfg.Lifecycle.SweepInterval.Duration, a.cfg.Lifecycle.SweepBatch,
	)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	return g.Wait()
}

// FullMode runs everything: HTTP API, WebSocket hub, and the lifecycle
// sweeper.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)

	sweeper := service.NewSweeper(
		deps.AuctionStore, svcs.lifecycle, deps.Clock, a.logger,
		a.cfg.Lifecycle.SweepInterval.Duration, a.cfg.Lifecycle.SweepBatch,
	)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by configuration")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Auctions:      handler.NewAuctionHandler(svcs.auctions, svcs.lifecycle, a.logger),
		Bids:          handler.NewBidHandler(svcs.bids, a.logger),
		Disputes:      handler.NewDisputeHandler(svcs.disputes, a.logger),
		Notifications: handler.NewNotificationHandler(svcs.notifications, a.logger),
		Metrics:       deps.Collector.Handler(),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		Limiter:     deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
