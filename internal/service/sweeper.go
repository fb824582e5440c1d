package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// sweepConcurrency bounds how many auctions one sweep reconciles in parallel.
const sweepConcurrency = 8

// Sweeper periodically reconciles auctions with pending transitions. It is
// the backstop behind on-demand reconciliation: an auction nobody reads still
// activates, ends and gets its winner within one sweep interval of its
// deadline.
type Sweeper struct {
	auctions   domain.AuctionStore
	reconciler Reconciler
	clock      domain.Clock
	logger     *slog.Logger

	interval time.Duration
	batch    int
}

// NewSweeper creates a Sweeper reconciling up to batch due auctions every
// interval.
func NewSweeper(
	auctions domain.AuctionStore,
	reconciler Reconciler,
	clock domain.Clock,
	logger *slog.Logger,
	interval time.Duration,
	batch int,
) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		auctions:   auctions,
		reconciler: reconciler,
		clock:      clock,
		logger:     logger.With(slog.String("component", "sweeper")),
		interval:   interval,
		batch:      batch,
	}
}

// Run sweeps until the context is cancelled. One sweep runs immediately on
// start so a restart clears any backlog without waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sweeper started",
		slog.Duration("interval", s.interval),
		slog.Int("batch", s.batch),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce reconciles one batch of due auctions with bounded concurrency.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	due, err := s.auctions.ListDue(ctx, s.clock.Now(), s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "list due failed", slog.String("error", err.Error()))
		return
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, a := range due {
		g.Go(func() error {
			if _, err := s.reconciler.Reconcile(gctx, a.ID); err != nil {
				s.logger.WarnContext(gctx, "reconcile failed",
					slog.String("auction_id", a.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.DebugContext(ctx, "sweep complete", slog.Int("due", len(due)))
}
