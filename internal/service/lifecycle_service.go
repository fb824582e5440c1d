// Package service contains the auction business logic: lifecycle
// reconciliation, bid acceptance, dispute resolution and the supporting
// read paths.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/auctionhouse/internal/domain"
	"github.com/mwhitfield/auctionhouse/internal/metrics"
	"github.com/mwhitfield/auctionhouse/internal/notify"
)

// reconcileLockTTL bounds how long a crashed reconciler can hold the advisory
// per-auction lock.
const reconcileLockTTL = 10 * time.Second

// LifecycleService drives auctions through created -> active -> ended ->
// winner_selected based on the clock. Reconcile is idempotent: every
// transition is a conditional store update that applies at most once, so the
// service can be called concurrently and re-run after a crash without
// double-activating, double-closing or double-selecting.
type LifecycleService struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	emitter  *notify.Emitter
	locks    domain.LockManager
	cache    domain.AuctionCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	metrics  *metrics.Collector
	clock    domain.Clock
	logger   *slog.Logger
}

// NewLifecycleService creates a LifecycleService with all required dependencies.
func NewLifecycleService(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	emitter *notify.Emitter,
	locks domain.LockManager,
	cache domain.AuctionCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	collector *metrics.Collector,
	clock domain.Clock,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		auctions: auctions,
		bids:     bids,
		emitter:  emitter,
		locks:    locks,
		cache:    cache,
		bus:      bus,
		audit:    audit,
		metrics:  collector,
		clock:    clock,
		logger:   logger.With(slog.String("component", "lifecycle")),
	}
}

// Reconcile brings a single auction's state in line with the clock and
// returns the resulting snapshot. A created auction past its start becomes
// active; an active auction past its end becomes ended; a naturally-ended
// auction with bids gets its winner selected, highest amount first with ties
// going to the earliest bid. An auction that ended with no bids stays ended
// with no winner, and a cancelled auction is never given one.
//
// Chained transitions happen in one call: reconciling a created auction whose
// end time has also passed walks it all the way to winner_selected.
func (s *LifecycleService) Reconcile(ctx context.Context, id string) (domain.AuctionSnapshot, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReconcile(time.Since(start)) }()

	a, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("lifecycle: get auction %q: %w", id, err)
	}

	now := s.clock.Now()
	if !a.DueForTransition(now) {
		return a.Snapshot(), nil
	}

	// The lock only avoids duplicate work between concurrent reconcilers.
	// Every transition below is individually guarded in the store, so we
	// proceed even when someone else holds it.
	unlock, err := s.locks.Acquire(ctx, "auction:"+id, reconcileLockTTL)
	switch {
	case err == nil:
		defer unlock()
	case errors.Is(err, domain.ErrLockHeld):
		s.logger.DebugContext(ctx, "reconcile lock held elsewhere", slog.String("auction_id", id))
	default:
		s.logger.WarnContext(ctx, "reconcile lock unavailable",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	if a.Status == domain.AuctionStatusCreated && !now.Before(a.StartTime) {
		applied, err := s.auctions.TransitionToActive(ctx, id, now)
		if err != nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("lifecycle: activate %q: %w", id, err)
		}
		if applied {
			s.announce(ctx, "auction_started", a, nil)
			s.metrics.Transition("activated")
		}
		a.Status = domain.AuctionStatusActive
	}

	if a.Status == domain.AuctionStatusActive && !now.Before(a.EndTime) {
		applied, err := s.auctions.CloseAuction(ctx, id, now)
		if err != nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("lifecycle: close %q: %w", id, err)
		}
		if applied {
			s.announce(ctx, "auction_ended", a, nil)
			s.metrics.Transition("ended")
		}
		a.Status = domain.AuctionStatusEnded
	}

	if a.Status == domain.AuctionStatusEnded && a.WinnerID == nil && a.CancelledAt == nil {
		if err := s.selectWinner(ctx, a); err != nil {
			return domain.AuctionSnapshot{}, err
		}
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	// Re-read so the snapshot reflects whatever actually applied, including
	// transitions won by a concurrent reconciler.
	final, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("lifecycle: reread auction %q: %w", id, err)
	}
	return final.Snapshot(), nil
}

// selectWinner resolves the winning bid for an ended auction and applies the
// winner_selected transition. The store guard makes the selection happen at
// most once across all callers.
func (s *LifecycleService) selectWinner(ctx context.Context, a domain.Auction) error {
	top, err := s.bids.HighestBid(ctx, a.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// No bids: the auction stays ended with no winner.
		return nil
	}
	if err != nil {
		return fmt.Errorf("lifecycle: highest bid for %q: %w", a.ID, err)
	}

	notifs := s.emitter.AuctionWon(a, top.BidderID, top.Amount)
	applied, err := s.auctions.SelectWinner(ctx, a.ID, top.BidderID, notifs)
	if err != nil {
		return fmt.Errorf("lifecycle: select winner for %q: %w", a.ID, err)
	}
	if !applied {
		// Someone else selected first, or the auction was cancelled.
		return nil
	}

	s.announce(ctx, "winner_selected", a, map[string]string{
		"winner_id": top.BidderID,
		"amount":    top.Amount.String(),
	})
	s.metrics.Transition("winner_selected")
	s.metrics.NotificationsWritten(len(notifs))

	s.logger.InfoContext(ctx, "winner selected",
		slog.String("auction_id", a.ID),
		slog.String("winner_id", top.BidderID),
		slog.String("amount", top.Amount.String()),
	)
	return nil
}

// announce publishes a bus event and writes the matching audit entry. Both
// are best-effort: delivery failures are logged, never surfaced, because the
// state change already committed.
func (s *LifecycleService) announce(ctx context.Context, event string, a domain.Auction, extra map[string]string) {
	payload := map[string]string{
		"event":      event,
		"auction_id": a.ID,
		"product":    a.ProductName,
	}
	for k, v := range extra {
		payload[k] = v
	}

	evt, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, "auctions", evt); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", event),
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()),
		)
	}

	detail := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "event" {
			continue
		}
		detail[k] = v
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
}
